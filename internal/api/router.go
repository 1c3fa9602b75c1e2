// Package api wires the HTTP routes and middleware for the canvas-agent
// server.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/datacanvas/datacanvas/canvas-agent/internal/api/handlers"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/api/middleware"
	"github.com/datacanvas/datacanvas/canvas-agent/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.Origin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/version", h.VersionInfo)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", h.Query)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.SessionHistory)
			r.Delete("/", h.ClearSession)
		})
	})

	return r
}
