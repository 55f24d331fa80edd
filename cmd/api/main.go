package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/packfinderz-storefront/api/routes"
	"github.com/angelmondragon/packfinderz-storefront/internal/auth"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/internal/checkout"
	"github.com/angelmondragon/packfinderz-storefront/internal/customers"
	"github.com/angelmondragon/packfinderz-storefront/internal/idempotency"
	"github.com/angelmondragon/packfinderz-storefront/internal/orders"
	"github.com/angelmondragon/packfinderz-storefront/internal/payments"
	"github.com/angelmondragon/packfinderz-storefront/internal/prefs"
	"github.com/angelmondragon/packfinderz-storefront/internal/receipts"
	"github.com/angelmondragon/packfinderz-storefront/pkg/commerce"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/db"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/angelmondragon/packfinderz-storefront/pkg/metrics"
	"github.com/angelmondragon/packfinderz-storefront/pkg/migrate"
	"github.com/angelmondragon/packfinderz-storefront/pkg/redis"
	"github.com/angelmondragon/packfinderz-storefront/pkg/square"
)

const (
	catalogCacheTTL   = time.Minute
	lookupRateLimit   = 30
	lookupRateWindow  = time.Minute
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	commerceMetrics := metrics.NewCommerceMetrics(registry)

	commerceClient, err := commerce.NewClient(cfg.Commerce, cfg.Breaker, logg, commerce.WithRecorder(commerceMetrics))
	if err != nil {
		logg.Error(context.Background(), "failed to create commerce client", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(
		cart.NewRepository(dbClient.DB()),
		dbClient,
		catalog.NewCached(commerceClient, catalogCacheTTL),
		cfg.Storefront.CartTTL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	keys, err := idempotency.NewManager(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	submitter, err := orders.NewSubmitter(commerceClient, keys, cartService, cfg.Storefront.OrderSource, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order submitter", err)
		os.Exit(1)
	}

	initiator, err := payments.NewInitiator(commerceClient, redisClient, payments.InitiatorConfig{
		PublicOrigin:       cfg.Storefront.PublicOrigin,
		DefaultCountryCode: cfg.Storefront.DefaultCountryCode,
		SessionTTL:         cfg.Checkout.PaymentTTL,
	}, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment initiator", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(commerceClient, initiator, payments.ReconcilerConfig{
		PollInterval:     cfg.Checkout.PollInterval,
		RedirectDelay:    cfg.Checkout.RedirectDelay,
		ConfirmationPath: cfg.Storefront.ConfirmationPath,
	}, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	receiptBuilder, err := receipts.NewBuilder(cfg.Storefront.ReceiptBaseURL, cfg.Storefront.ReceiptDefaultOrigin)
	if err != nil {
		logg.Error(context.Background(), "failed to create receipt builder", err)
		os.Exit(1)
	}

	preferences := prefs.New(prefs.NewRedisStore(redisClient, cfg.Storefront.CartTTL), cfg.Storefront.RecentlyViewedLimit, logg)

	authService, err := auth.NewService(auth.ServiceParams{
		Accounts:  commerceClient,
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	checkoutParams := checkout.ServiceParams{
		Carts:      cartService,
		Submitter:  submitter,
		Initiator:  initiator,
		Sessions:   redisClient,
		SessionTTL: cfg.Checkout.SessionTTL,
		Prefs:      preferences,
		Logger:     logg,
	}
	deps := routes.Dependencies{
		DB:       dbClient,
		Redis:    redisClient,
		Gatherer: registry,
		Carts:    cartService,
		Auth:     authService,
		Payments: reconciler,
		Receipts: receiptBuilder,
		Prefs:    preferences,
	}

	if cfg.Square.Enabled() {
		squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create square client", err)
			os.Exit(1)
		}
		recognizer, err := customers.NewRecognizer(squareClient, redisClient, customers.RecognizerConfig{
			Debounce:    cfg.Checkout.LookupDebounce,
			CountryCode: cfg.Storefront.DefaultCountryCode,
			RateLimit:   lookupRateLimit,
			RateWindow:  lookupRateWindow,
		}, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create customer recognizer", err)
			os.Exit(1)
		}
		deps.Lookup = recognizer
		checkoutParams.Registrar = customers.NewRegistrar(squareClient, cfg.Storefront.DefaultCountryCode)
	} else {
		logg.Warn(context.Background(), "square not configured, customer recognition disabled")
	}

	checkoutService, err := checkout.NewService(checkoutParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	deps.Checkout = checkoutService

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}
