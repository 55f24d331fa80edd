package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// CheckoutRequest is one press of the checkout button.
type CheckoutRequest struct {
	Mode     string          `json:"mode" validate:"required,oneof=pay_now request_quote"`
	Customer CustomerRequest `json:"customer"`
}

type CustomerRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Phone           string `json:"phone" validate:"required,max=32"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	DeliveryAddress string `json:"delivery_address" validate:"max=500"`
}

type SwitchModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=pay_now request_quote"`
}

// PayRequest selects the payment method for a submitted order.
type PayRequest struct {
	Method      string `json:"method" validate:"required,oneof=mtn_mobile_money airtel_money card gateway"`
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Phone       string `json:"phone" validate:"max=32"`
	CountryCode string `json:"country_code" validate:"omitempty,numeric,max=4"`
}

// CheckoutSubmit starts the purchase path for the session's cart.
func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}

		var body CheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Submit(r.Context(), actor, checkout.SubmitInput{
			Mode: enums.PaymentMode(body.Mode),
			Customer: checkout.Customer{
				Name:            validators.SanitizeString(body.Customer.Name, 200),
				Phone:           validators.SanitizeString(body.Customer.Phone, 32),
				Email:           validators.SanitizeString(body.Customer.Email, 254),
				DeliveryAddress: validators.SanitizeString(body.Customer.DeliveryAddress, 500),
			},
		})
		writeCheckout(w, r, logg, resp, err)
	}
}

// CheckoutState reports where the session currently is in the purchase path.
func CheckoutState(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}
		resp, err := svc.State(r.Context(), actor)
		writeCheckout(w, r, logg, resp, err)
	}
}

func CheckoutGuest(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}
		resp, err := svc.ChooseGuest(r.Context(), actor)
		writeCheckout(w, r, logg, resp, err)
	}
}

// CheckoutBeginAuth records the choice to sign in or register; {kind} accepts sign_in,
// sign-in, register.
func CheckoutBeginAuth(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}
		raw, err := validators.PathParam(r, "kind")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseAuthKind(strings.ReplaceAll(strings.ToLower(raw), "-", "_"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown authentication kind"))
			return
		}
		resp, err := svc.BeginAuth(r.Context(), actor, kind)
		writeCheckout(w, r, logg, resp, err)
	}
}

func CheckoutAbandonAuth(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}
		resp, err := svc.AbandonAuth(r.Context(), actor)
		writeCheckout(w, r, logg, resp, err)
	}
}

func CheckoutSwitchMode(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}
		var body SwitchModeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.SwitchMode(r.Context(), actor, enums.PaymentMode(body.Mode))
		writeCheckout(w, r, logg, resp, err)
	}
}

// CheckoutPay initiates hosted payment for a submitted order. Browsers posting with
// Accept: text/html are sent to the payment page with a 303; API clients read
// redirect_url from the body. A payment_retry outcome is never replayed, so retrying
// under the same Idempotency-Key starts a new initiation.
func CheckoutPay(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := checkoutActor(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, err := validators.PathParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body PayRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Pay(r.Context(), actor, orderID, checkout.PayInput{
			Method:  enums.PaymentMethod(body.Method),
			Name:    validators.SanitizeString(body.Name, 200),
			Email:   validators.SanitizeString(body.Email, 254),
			Phone:   validators.SanitizeString(body.Phone, 32),
			Country: body.CountryCode,
		})
		if err == nil && resp != nil && resp.Stage == checkout.StagePaymentRetry {
			middleware.DiscardIdempotentResponse(r.Context())
		}
		if err == nil && resp != nil && resp.Stage == checkout.StageRedirect && wantsHTML(r) {
			http.Redirect(w, r, resp.RedirectURL, http.StatusSeeOther)
			return
		}
		writeCheckout(w, r, logg, resp, err)
	}
}

func checkoutActor(w http.ResponseWriter, r *http.Request, svc checkout.Service, logg *logger.Logger) (checkout.Actor, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
		return checkout.Actor{}, false
	}
	actor, err := actorFrom(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return checkout.Actor{}, false
	}
	return actor, true
}

func writeCheckout(w http.ResponseWriter, r *http.Request, logg *logger.Logger, resp *checkout.Response, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, resp)
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}
