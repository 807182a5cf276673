package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/refertrack/refertrack/internal/metrics"
	"github.com/refertrack/refertrack/internal/middleware"
)

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Referrals   *ReferralHandler
	Health      *HealthHandler
	Snapshotter metrics.Snapshotter
	Logger      *slog.Logger

	CORS               middleware.CORSConfig
	IsDevelopment      bool
	MaxRequestBodySize int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := New()
	metricsHandler := NewMetricsHandler(cfg.Snapshotter)

	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultSecurityConfig().MaxRequestBodySize
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger, "/healthz", "/readyz"))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.IsDevelopment))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment,
		MaxRequestBodySize: maxBody,
	}))
	r.Use(middleware.MaxBodySize(maxBody))

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)
	r.Get("/", h.Hello)

	r.Route("/api", func(r chi.Router) {
		r.Post("/referral", cfg.Referrals.Create)
		r.Get("/referrals", cfg.Referrals.ListAll)
		r.Get("/referral/user/{userID}", cfg.Referrals.ListByUser)
	})

	// Links followed from invitation emails
	r.Group(func(r chi.Router) {
		r.Use(middleware.HTMLPage)
		r.Get("/referral/accept", cfg.Referrals.Accept)
		r.Get("/referral/reject", cfg.Referrals.Reject)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
