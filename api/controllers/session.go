package controllers

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

func sessionFrom(r *http.Request) (string, error) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "browsing session missing")
	}
	return sessionID, nil
}

func actorFrom(r *http.Request) (checkout.Actor, error) {
	sessionID, err := sessionFrom(r)
	if err != nil {
		return checkout.Actor{}, err
	}
	return checkout.Actor{
		SessionID:  sessionID,
		CustomerID: middleware.CustomerIDFromContext(r.Context()),
	}, nil
}
