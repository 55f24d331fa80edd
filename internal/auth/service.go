package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	pkgAuth "github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	SignIn(ctx context.Context, req SignInRequest) (*Session, error)
	Register(ctx context.Context, req RegisterRequest) (*Session, error)
}

type accountClient interface {
	SignIn(ctx context.Context, creds commerce.Credentials) (*commerce.Account, error)
	Register(ctx context.Context, reg commerce.Registration) (*commerce.Account, error)
}

var _ accountClient = (*commerce.Client)(nil)

type service struct {
	accounts accountClient
	jwtCfg   config.JWTConfig
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Accounts  accountClient
	JWTConfig config.JWTConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("account client is required")
	}
	return &service{accounts: params.Accounts, jwtCfg: params.JWTConfig, now: time.Now}, nil
}

func (s *service) SignIn(ctx context.Context, req SignInRequest) (*Session, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if strings.Contains(identifier, "@") {
		identifier = strings.ToLower(identifier)
	}

	account, err := s.accounts.SignIn(ctx, commerce.Credentials{Identifier: identifier, Password: req.Password})
	if err != nil {
		return nil, credentialError(err)
	}
	return s.issue(account)
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	reg := commerce.Registration{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Password: req.Password,
	}
	if reg.Name == "" || reg.Phone == "" || reg.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name, phone and password are required")
	}

	account, err := s.accounts.Register(ctx, reg)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "an account with these details already exists")
		}
		return nil, credentialError(err)
	}
	return s.issue(account)
}

func (s *service) issue(account *commerce.Account) (*Session, error) {
	now := s.now().UTC()
	issued, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		CustomerID: account.ID,
		Email:      account.Email,
		Name:       account.Name,
		Phone:      account.Phone,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &Session{
		AccessToken: issued.Value,
		ExpiresAt:   issued.ExpiresAt,
		Customer: CustomerDTO{
			ID:    account.ID,
			Name:  account.Name,
			Email: account.Email,
			Phone: account.Phone,
		},
	}, nil
}

// credentialError maps the commerce API's rejection of credentials to the storefront's
// unauthorized error. Other failures pass through.
func credentialError(err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "account service unavailable")
	}
	switch typed.Code() {
	case pkgerrors.CodeAuthRequired, pkgerrors.CodeUnauthorized, pkgerrors.CodeForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidCredentialsMessage)
	}
	return err
}
