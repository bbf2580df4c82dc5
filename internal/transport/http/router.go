// Package httptransport assembles the HTTP surface. Handlers stay thin and
// the middleware chain is identical for every authenticated route: recovery,
// request ID, request-scoped clock, logging, latency, then auth.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medledger/internal/platform/metrics"
	"medledger/internal/platform/middleware"
	"medledger/internal/transport/http/shared"

	"log/slog"
)

// Registrar mounts a domain handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports backend reachability for /healthz.
type HealthCheck func(ctx context.Context) error

// NewRouter wires the public surface: authenticated registry routes, the
// Prometheus endpoint, and health.
func NewRouter(
	logger *slog.Logger,
	m *metrics.Metrics,
	validator middleware.TokenValidator,
	health HealthCheck,
	handlers ...Registrar,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	if m != nil {
		r.Use(middleware.Latency(m))
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if health != nil {
			if err := health(ctx); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(validator, logger))
		for _, h := range handlers {
			h.Register(protected)
		}
	})

	return r
}
