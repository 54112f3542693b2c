package controllers

import (
	"context"
	"net/http"

	"github.com/growersmarket/farmdirect-backend/api/responses"
	"github.com/growersmarket/farmdirect-backend/pkg/config"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/growersmarket/farmdirect-backend/pkg/logger"
)

// ReadyDep is a dependency probed by the readiness endpoint.
type ReadyDep interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FarmDirect-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every backing dependency answers.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]ReadyDep) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FarmDirect-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "missing"
				healthy = false
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				checks[name] = "down"
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").
				WithDetails(map[string]any{"checks": checks})
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
