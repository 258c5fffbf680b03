package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/fruteria-pos/api/responses"
	"github.com/angelmondragon/fruteria-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger is anything the readiness probe can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogStatus reports whether the catalog snapshot has been loaded.
type CatalogStatus interface {
	Loaded() bool
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fruteria-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady fails until the catalog is loaded and every configured pinger answers.
func HealthReady(cfg *config.Config, logg *logger.Logger, catalog CatalogStatus, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fruteria-Env", cfg.App.Env)

		if catalog != nil && !catalog.Loaded() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "catalog not loaded").
				WithDetails(map[string]any{"component": "catalog"}))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		for name, pinger := range pingers {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]any{"component": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
