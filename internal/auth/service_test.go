package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type stubAccounts struct {
	creds   commerce.Credentials
	reg     commerce.Registration
	account *commerce.Account
	err     error
}

func (s *stubAccounts) SignIn(ctx context.Context, creds commerce.Credentials) (*commerce.Account, error) {
	s.creds = creds
	return s.account, s.err
}

func (s *stubAccounts) Register(ctx context.Context, reg commerce.Registration) (*commerce.Account, error) {
	s.reg = reg
	return s.account, s.err
}

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}

func buildTestService(t *testing.T, accounts *stubAccounts) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Accounts: accounts, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestSignInMintsCustomerToken(t *testing.T) {
	accounts := &stubAccounts{account: &commerce.Account{ID: "cust-1", Name: "Ada", Email: "ada@example.com"}}
	svc := buildTestService(t, accounts)

	session, err := svc.SignIn(context.Background(), SignInRequest{Identifier: " Ada@Example.com ", Password: "pw"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if accounts.creds.Identifier != "ada@example.com" {
		t.Fatalf("expected normalized email identifier, got %q", accounts.creds.Identifier)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, session.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.CustomerID != "cust-1" || claims.Email != "ada@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if session.Customer.ID != "cust-1" {
		t.Fatalf("unexpected customer %+v", session.Customer)
	}
	if time.Until(session.ExpiresAt) <= 29*time.Minute {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}
}

func TestSignInRejectedCredentials(t *testing.T) {
	for _, code := range []pkgerrors.Code{pkgerrors.CodeAuthRequired, pkgerrors.CodeUnauthorized} {
		accounts := &stubAccounts{err: pkgerrors.New(code, "nope")}
		svc := buildTestService(t, accounts)

		_, err := svc.SignIn(context.Background(), SignInRequest{Identifier: "0772123456", Password: "pw"})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized || typed.Message() != invalidCredentialsMessage {
			t.Fatalf("expected invalid credentials for %s, got %v", code, err)
		}
	}
}

func TestSignInEmptyCredentials(t *testing.T) {
	accounts := &stubAccounts{}
	svc := buildTestService(t, accounts)
	if _, err := svc.SignIn(context.Background(), SignInRequest{Identifier: " "}); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if accounts.creds.Identifier != "" {
		t.Fatalf("commerce API must not be called for empty credentials")
	}
}

func TestSignInTransportFailure(t *testing.T) {
	svc := buildTestService(t, &stubAccounts{err: errors.New("dial tcp: refused")})
	if _, err := svc.SignIn(context.Background(), SignInRequest{Identifier: "a@b.c", Password: "pw"}); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	accounts := &stubAccounts{account: &commerce.Account{ID: "cust-2", Name: "Grace", Phone: "0772123456"}}
	svc := buildTestService(t, accounts)

	session, err := svc.Register(context.Background(), RegisterRequest{
		Name:     " Grace ",
		Email:    "Grace@Example.com",
		Phone:    "0772123456",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if accounts.reg.Name != "Grace" || accounts.reg.Email != "grace@example.com" {
		t.Fatalf("unexpected registration %+v", accounts.reg)
	}
	if session.Customer.Phone != "0772123456" || session.AccessToken == "" {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestRegisterConflict(t *testing.T) {
	svc := buildTestService(t, &stubAccounts{err: pkgerrors.New(pkgerrors.CodeConflict, "exists")})
	_, err := svc.Register(context.Background(), RegisterRequest{Name: "G", Phone: "0772123456", Password: "password1"})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := buildTestService(t, &stubAccounts{})
	if _, err := svc.Register(context.Background(), RegisterRequest{Name: "G"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewServiceRequiresAccounts(t *testing.T) {
	if _, err := NewService(ServiceParams{JWTConfig: testJWT}); err == nil {
		t.Fatalf("expected error without account client")
	}
}
