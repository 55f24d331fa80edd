package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency concurrently and reports which ones failed.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(deps))
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
			results[name] = "ok"
		}
		outcomes := make([]error, len(names))

		var g errgroup.Group
		for i, name := range names {
			pinger := deps[name]
			if pinger == nil {
				continue
			}
			g.Go(func() error {
				outcomes[i] = pinger.Ping(ctx)
				return nil
			})
		}
		_ = g.Wait()

		ready := true
		for i, name := range names {
			if outcomes[i] == nil {
				continue
			}
			ready = false
			results[name] = "unavailable"
			if logg != nil {
				logg.Error(logg.WithField(r.Context(), "dependency", name), "health.ready.failed", outcomes[i])
			}
		}
		if !ready {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(results))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": results})
	}
}
