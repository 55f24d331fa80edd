package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/packfinderz-storefront/api/controllers/cart"
	"github.com/angelmondragon/packfinderz-storefront/api/middleware"
	"github.com/angelmondragon/packfinderz-storefront/internal/auth"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	checkoutsvc "github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/internal/prefs"
	"github.com/angelmondragon/packfinderz-storefront/internal/receipts"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
)

// Dependencies are the services the HTTP surface dispatches to. Lookup is optional; without
// a customer directory every phone lookup is a miss.
type Dependencies struct {
	DB       db.Pinger
	Redis    *redis.Client
	Gatherer prometheus.Gatherer

	Carts    cart.Service
	Checkout checkoutsvc.Service
	Auth     auth.Service
	Payments controllers.PaymentWatcher
	Receipts *receipts.Builder
	Lookup   controllers.PhoneLookup
	Prefs    *prefs.Prefs
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.AllowedOrigins),
	)

	signInPolicy := middleware.NewAuthRateLimitPolicy(
		"sign_in",
		cfg.AuthRateLimit.SignInWindow,
		cfg.AuthRateLimit.SignInIPLimit,
		cfg.AuthRateLimit.SignInIdentifierLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterIdentifierLimit,
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := passthrough
	signInLimit := passthrough
	registerLimit := passthrough
	if deps.Redis != nil {
		idempotent = middleware.Idempotency(deps.Redis, logg)
		signInLimit = middleware.AuthRateLimit(signInPolicy, deps.Redis, logg)
		registerLimit = middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(middleware.SessionOptions{
			MaxAge: cfg.Storefront.CartTTL,
			Domain: cfg.Storefront.SessionCookieDomain,
			Secure: cfg.Storefront.SessionCookieSecure,
		}, logg))
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(deps.Carts, logg))
			r.With(idempotent).Post("/new", cartcontrollers.CartStartNew(deps.Carts, logg))
			r.Post("/lines", cartcontrollers.CartAddLine(deps.Carts, logg))
			r.Post("/bundles", cartcontrollers.CartAddBundle(deps.Carts, logg))
			r.Patch("/lines/{lineId}", cartcontrollers.CartUpdateLine(deps.Carts, logg))
			r.Delete("/lines/{lineId}", cartcontrollers.CartRemoveLine(deps.Carts, logg))
			r.Delete("/bundles/{bundleGroupId}", cartcontrollers.CartRemoveBundle(deps.Carts, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", controllers.CheckoutState(deps.Checkout, logg))
			r.Post("/", controllers.CheckoutSubmit(deps.Checkout, logg))
			r.Post("/guest", controllers.CheckoutGuest(deps.Checkout, logg))
			r.Post("/auth/abandon", controllers.CheckoutAbandonAuth(deps.Checkout, logg))
			r.Post("/auth/{kind}", controllers.CheckoutBeginAuth(deps.Checkout, logg))
			r.Put("/mode", controllers.CheckoutSwitchMode(deps.Checkout, logg))
			r.With(idempotent).Post("/orders/{orderId}/payment", controllers.CheckoutPay(deps.Checkout, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(signInLimit).Post("/sign-in", controllers.AuthSignIn(deps.Auth, deps.Checkout, logg))
			r.With(registerLimit, idempotent).Post("/register", controllers.AuthRegister(deps.Auth, deps.Checkout, logg))
		})

		r.Get("/payments/return", controllers.PaymentReturn(deps.Payments, logg))
		r.Get("/orders/{orderId}/receipt", controllers.OrderReceipt(deps.Receipts, logg))
		r.Get("/customers/lookup", controllers.CustomerLookup(deps.Lookup, logg))

		r.Route("/prefs", func(r chi.Router) {
			r.Get("/phone", controllers.PrefsPhone(deps.Prefs, logg))
			r.Put("/phone", controllers.PrefsRememberPhone(deps.Prefs, logg))
			r.Get("/recently-viewed", controllers.PrefsRecentlyViewed(deps.Prefs, logg))
			r.Post("/recently-viewed", controllers.PrefsViewProduct(deps.Prefs, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
