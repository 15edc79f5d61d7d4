// Package httptransport assembles the public HTTP surface: the middleware
// chain, health and metrics endpoints, and the bounded-context handlers.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entrypass/internal/platform/metrics"
	authmw "entrypass/pkg/platform/middleware/auth"
	"entrypass/pkg/platform/middleware/device"
	"entrypass/pkg/platform/middleware/metadata"
	"entrypass/pkg/platform/middleware/request"
	"entrypass/pkg/platform/middleware/requesttime"
)

// Registrar mounts a bounded context's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries everything the router needs. Nil Metrics disables request
// metrics; a nil Gatherer serves the default registry.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      authmw.JWTValidator
	RequestTimeout time.Duration
	Handler        *Handler
	Handlers       []Registrar
}

// NewRouter wires the middleware chain. Health and metrics are public;
// everything under /v1 requires a bearer token.
func NewRouter(cfg Config) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)

	r.Get("/healthz", cfg.Handler.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
		cfg.Handler.Register(r)
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})
	return r
}
