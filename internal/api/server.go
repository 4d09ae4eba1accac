// Package api exposes the HTTP surface: commerce webhooks, the storefront
// tracking pixel, read-only dashboards, and manual sweep triggers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server wraps the router and the http.Server lifecycle.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server with all routes registered.
func NewServer(h *Handlers) *Server {
	return &Server{handler: SetupRoutes(h)}
}

// SetupRoutes configures the router.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS is open on purpose: the tracking pixel fires from every
	// storefront page and webhooks come from the platform's servers.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)

	r.Post("/webhooks/cart-created", h.HandleCartWebhook)
	r.Post("/webhooks/cart-updated", h.HandleCartWebhook)
	r.Post("/webhooks/order-created", h.HandleOrderWebhook)

	r.Post("/track/view", h.HandleTrackView)

	r.Route("/api", func(r chi.Router) {
		r.Get("/carts", h.HandleListCarts)
		r.Get("/browse-events", h.HandleListBrowseEvents)
		r.Get("/email-log", h.HandleListEmailLog)
		r.Get("/stats", h.HandleStats)
		r.Post("/sweep/carts", h.HandleRunCartSweep)
		r.Post("/sweep/browse", h.HandleRunBrowseSweep)
	})

	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
