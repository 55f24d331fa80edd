package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	"github.com/angelmondragon/packfinderz-storefront/internal/prefs"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const maxRecentlyViewed = 50

type PhonePrefRequest struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type ViewProductRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
}

// PrefsPhone returns the phone number remembered for the session, empty when none is.
func PrefsPhone(p *prefs.Prefs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"phone": p.PhonePrefill(r.Context(), sessionID)})
	}
}

func PrefsRememberPhone(p *prefs.Prefs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body PhonePrefRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p.RememberPhone(r.Context(), sessionID, validators.SanitizeString(body.Phone, 32))
		responses.WriteNoContent(w)
	}
}

// PrefsRecentlyViewed lists product ids most recent first; ?limit= narrows the list.
func PrefsRecentlyViewed(p *prefs.Prefs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", maxRecentlyViewed, 1, maxRecentlyViewed)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids := p.RecentlyViewed(r.Context(), sessionID)
		if len(ids) > limit {
			ids = ids[:limit]
		}
		responses.WriteSuccess(w, map[string][]string{"product_ids": ids})
	}
}

func PrefsViewProduct(p *prefs.Prefs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body ViewProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p.ViewProduct(r.Context(), sessionID, validators.SanitizeString(body.ProductID, 128))
		responses.WriteNoContent(w)
	}
}
