package http

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter creates a new Chi router with all middleware and routes.
// Click hops are rate limited; health checks and dashboards are not. Forwarding
// headers are honored only from trustedProxies.
func NewRouter(handler *Handler, logger *zap.Logger, rateLimiter *RateLimiter, metricsHandler http.Handler, trustedProxies []netip.Prefix) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(trustedProxies))
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Healthz)
	r.Get("/readyz", handler.Readyz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Get("/c/{linkID}", handler.Click)
		r.Get("/validate", handler.Validate)
		r.Get("/route", handler.Route)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/metrics", handler.Metrics)
		r.Get("/threats", handler.Threats)
	})

	return r
}
