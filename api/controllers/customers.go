package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	"github.com/angelmondragon/packfinderz-storefront/internal/customers"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

type PhoneLookup interface {
	Lookup(ctx context.Context, sessionID, partialPhone string) (*customers.Profile, error)
}

var _ PhoneLookup = (*customers.Recognizer)(nil)

// LookupResult carries the recognised profile, if any.
type LookupResult struct {
	Found   bool               `json:"found"`
	Profile *customers.Profile `json:"profile,omitempty"`
}

// CustomerLookup recognises a returning customer from the phone number typed so far. A
// lookup overtaken by a newer keystroke answers 204. Without a configured customer
// directory every lookup is a miss.
func CustomerLookup(lookup PhoneLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := sessionFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		phone := validators.SanitizeString(r.URL.Query().Get("phone"), 32)
		if phone == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "phone is required"))
			return
		}
		if lookup == nil {
			responses.WriteSuccess(w, LookupResult{})
			return
		}

		profile, err := lookup.Lookup(r.Context(), sessionID, phone)
		switch {
		case errors.Is(err, customers.ErrSuperseded):
			responses.WriteNoContent(w)
			return
		case err != nil:
			if r.Context().Err() != nil {
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, LookupResult{Found: profile != nil, Profile: profile})
	}
}
