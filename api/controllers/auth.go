package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	"github.com/angelmondragon/packfinderz-storefront/internal/auth"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const tokenHeader = "X-SF-Token"

// AuthResult is returned by sign-in and registration. Checkout is present when the
// session had a checkout suspended at the authentication gate, which has now resumed.
type AuthResult struct {
	Session  *auth.Session      `json:"session"`
	Checkout *checkout.Response `json:"checkout,omitempty"`
}

func AuthSignIn(svc auth.Service, checkoutSvc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.SignInRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.SignIn(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(tokenHeader, session.AccessToken)
		responses.WriteSuccess(w, AuthResult{
			Session:  session,
			Checkout: resumeCheckout(r, checkoutSvc, logg, session),
		})
	}
}

func AuthRegister(svc auth.Service, checkoutSvc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set(tokenHeader, session.AccessToken)
		responses.WriteSuccessStatus(w, http.StatusCreated, AuthResult{
			Session:  session,
			Checkout: resumeCheckout(r, checkoutSvc, logg, session),
		})
	}
}

// resumeCheckout completes the authentication sub-flow for the browsing session. The
// credential is already issued, so a failure here is logged and the storefront falls back
// to re-reading checkout state.
func resumeCheckout(r *http.Request, svc checkout.Service, logg *logger.Logger, session *auth.Session) *checkout.Response {
	if svc == nil || session == nil {
		return nil
	}
	actor, err := actorFrom(r)
	if err != nil {
		return nil
	}
	actor.CustomerID = session.Customer.ID

	ctx := context.WithoutCancel(r.Context())
	resp, err := svc.CompleteAuth(ctx, actor)
	if err != nil {
		if logg != nil {
			logg.Error(logg.WithCustomerID(ctx, actor.CustomerID), "auth.resume_checkout_failed", err)
		}
		return nil
	}
	return resp
}
