package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const DefaultSessionCookie = "sf_session"

// SessionOptions controls the browsing-session cookie.
type SessionOptions struct {
	CookieName string
	MaxAge     time.Duration
	Domain     string
	Secure     bool
}

func (o SessionOptions) cookieName() string {
	if name := strings.TrimSpace(o.CookieName); name != "" {
		return name
	}
	return DefaultSessionCookie
}

// Session assigns every request a browsing session id. The id lives in a cookie and is
// re-issued whenever it is missing or not a uuid; carts, checkout state and preferences
// are keyed by it.
func Session(opts SessionOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	name := opts.cookieName()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(name); err == nil {
				if parsed, parseErr := uuid.Parse(strings.TrimSpace(cookie.Value)); parseErr == nil {
					sessionID = parsed.String()
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			// refreshed on every request so an active session never lapses
			http.SetCookie(w, sessionCookie(name, sessionID, opts))

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionCookie(name, value string, opts SessionOptions) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if opts.Secure {
		cookie.SameSite = http.SameSiteNoneMode
	}
	if opts.MaxAge > 0 {
		cookie.MaxAge = int(opts.MaxAge.Seconds())
	}
	return cookie
}
