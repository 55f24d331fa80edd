package commerce

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type accountEnvelope struct {
	Customer Account `json:"customer"`
}

func (c *Client) SignIn(ctx context.Context, creds Credentials) (*Account, error) {
	var resp accountEnvelope
	if err := c.do(ctx, call{
		endpoint: "sign_in",
		method:   http.MethodPost,
		path:     "auth/login",
		body:     creds,
	}, &resp); err != nil {
		return nil, err
	}
	return accountOrError(resp.Customer)
}

func (c *Client) Register(ctx context.Context, reg Registration) (*Account, error) {
	var resp accountEnvelope
	if err := c.do(ctx, call{
		endpoint: "register",
		method:   http.MethodPost,
		path:     "auth/register",
		body:     reg,
	}, &resp); err != nil {
		return nil, err
	}
	return accountOrError(resp.Customer)
}

func accountOrError(acct Account) (*Account, error) {
	if strings.TrimSpace(acct.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "account service returned no customer id")
	}
	return &acct, nil
}
