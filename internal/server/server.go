// Package server is the HTTP surface: thin handlers over the engine,
// cache and strategy registry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/advisor/internal/cache"
	"github.com/aristath/advisor/internal/engine"
	"github.com/aristath/advisor/internal/strategy"
)

// Config holds server configuration
type Config struct {
	Port        int
	Log         zerolog.Logger
	DevMode     bool
	CORSOrigins []string

	Instruments []string
	Engine      *engine.Engine
	Cache       *cache.Cache
	Registry    *strategy.Registry
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode, cfg.CORSOrigins)

	h := newHandlers(cfg)
	s.setupRoutes(h)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool, origins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(70 * time.Second))

	// CORS
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h *handlers) {
	// Health check
	s.router.Get("/health", h.handleHealth)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/instruments", h.handleInstruments)

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/{instrument}", h.handleGetRecommendation)
			r.Post("/{instrument}/refresh", h.handleRefreshRecommendation)
		})

		r.Route("/strategies", func(r chi.Router) {
			r.Get("/", h.handleListStrategies)
			r.Put("/{name}", h.handleUpdateStrategy)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", h.handleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
