package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/revo-backend/api/responses"
	"github.com/angelmondragon/revo-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/revo-backend/pkg/errors"
	"github.com/angelmondragon/revo-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Revo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every dependency concurrently. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Revo-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make(map[string]string, len(deps))
		errs := make(map[string]error, len(deps))
		type probe struct {
			name string
			err  error
		}
		probes := make(chan probe, len(deps))

		var g errgroup.Group
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			g.Go(func() error {
				probes <- probe{name: name, err: dep.Ping(ctx)}
				return nil
			})
		}
		_ = g.Wait()
		close(probes)

		for p := range probes {
			if p.err != nil {
				results[p.name] = "down"
				errs[p.name] = p.err
				continue
			}
			results[p.name] = "up"
		}

		if len(errs) > 0 {
			for name, err := range errs {
				if logg != nil {
					logg.Error(logg.WithField(r.Context(), "dependency", name), "health.ready.failed", err)
				}
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(results))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": results})
	}
}
