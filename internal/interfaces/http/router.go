// Package http serves the worker's operations endpoint: health checks and the
// Prometheus scrape path.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/prometheus"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/interfaces/http/handlers"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the dependencies of the route tree. Nil fields
// disable the corresponding routes.
type RouterConfig struct {
	HealthHandler    *handlers.HealthHandler
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
	Logger           logging.Logger
	Logging          middleware.LoggingConfig
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
		r.Get("/healthz/detail", cfg.HealthHandler.Detailed)
	}

	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	return r
}

//Personal.AI order the ending
