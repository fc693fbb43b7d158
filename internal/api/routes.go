package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes. Everything except /health and
// /metrics sits behind the dashboard password when one is set.
func SetupRoutes(h *Handlers, health *HealthChecker, password string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:6969"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Probes and scraping (no auth required)
	if health != nil {
		r.Get("/health", health.HandleHealth)
		r.Get("/health/live", health.HandleLiveness)
		r.Get("/health/ready", health.HandleReadiness)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(BasicAuth(password))

		r.Get("/version", h.GetVersion)
		r.Get("/stats", h.GetStats)

		// Refresh
		r.Post("/refresh", h.Refresh)
		r.Get("/refresh-stream", h.RefreshStream)
		r.Get("/refresh-sends-opens", h.RefreshSendsOpens)
		r.Get("/refresh-leads", h.RefreshLeads)
		r.Get("/refresh-campaign", h.RefreshCampaign)
		r.Post("/refresh-campaign", h.RefreshCampaign)
		r.Post("/reset-refresh-timestamps", h.ResetRefreshTimestamps)

		r.Get("/export-won-leads", h.ExportWonLeads)

		// Runtime settings
		r.Get("/config-info", h.GetConfigInfo)
		r.Post("/config", h.UpdateConfig)

		r.Post("/check-klaviyo-events", h.CheckKlaviyoEvents)
	})

	return r
}
