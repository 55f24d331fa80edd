package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const fallbackOrigin = "http://localhost:3000"

// CORS applies the storefront origin policy. Credentials are allowed so the session
// cookie travels with cross-origin requests from the storefront frontend.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			allowed = append(allowed, trimmed)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{fallbackOrigin}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "Last-Event-ID", "X-Requested-With", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "X-SF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
