// Package server sets up the HTTP server, router and route definitions.
//
// DEPENDENCY INJECTION FLOW:
// main.go builds the store, the scraper and the tracking service, and hands
// the service and token verifier to New. The server only wires them to
// routes; it owns no resources of its own, so closing the store stays with
// main, after the server has drained.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/dealwatch/internal/auth"
	"github.com/sakif/dealwatch/internal/handler"
	"github.com/sakif/dealwatch/internal/middleware"
)

// ShutdownTimeout is how long in-flight requests get to finish.
const ShutdownTimeout = 30 * time.Second

type Config struct {
	Port int
	// WriteTimeout must outlast a product scrape, which POST /api/products
	// performs inline.
	WriteTimeout time.Duration
}

// Server is the HTTP front of the tracking service.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

func New(cfg Config, tracker handler.Tracker, tokens *auth.TokenService, logger *slog.Logger) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = time.Minute
	}
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(tracker, tokens)
	return s
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                    → liveness probe, unauthenticated
// POST   /api/users                  → register the token's user
// GET    /api/me/limits              → quota usage
// GET    /api/me/referrals           → referral standing
// POST   /api/products               → start tracking
// POST   /api/products/preview       → scrape without tracking
// GET    /api/products               → list, newest first
// GET    /api/products/{id}/history  → price history
// DELETE /api/products/{id}          → stop tracking
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can report it. Recoverer sits inside the
// logger so a panic is logged as the 500 it becomes.
func (s *Server) setupRoutes(tracker handler.Tracker, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", handler.HandleHealth)

	trackingHandler := handler.NewTrackingHandler(tracker, s.logger)
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		trackingHandler.Routes(r)
	})
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully: no new
// connections are accepted and in-flight requests get ShutdownTimeout to
// finish.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.Int("port", s.config.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
