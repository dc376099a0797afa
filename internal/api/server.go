// Package api provides the read-only release API served by `relkit server`.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/config"
	"github.com/lan-dot-party/relkit/internal/github"
	"github.com/lan-dot-party/relkit/internal/storage"
	"github.com/lan-dot-party/relkit/pkg/version"
)

// ReleaseLister lists published firmware releases.
type ReleaseLister interface {
	ListReleases(ctx context.Context) ([]github.Release, error)
}

// Server represents the HTTP API server.
type Server struct {
	config     *config.WebserverConfig
	fullConfig *config.Config
	storage    storage.Storage
	releases   ReleaseLister
	cache      *gocache.Cache
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a new API server instance. store and releases may be nil
// when history or release lookups are not available; the matching endpoints
// then answer 503.
func NewServer(cfg *config.Config, store storage.Storage, releases ReleaseLister, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := cfg.GitHub.CacheTTL
	if ttl <= 0 {
		ttl = config.DefaultGitHubCacheTTL
	}

	s := &Server{
		config:     &cfg.Webserver,
		fullConfig: cfg,
		storage:    store,
		releases:   releases,
		cache:      gocache.New(ttl, 2*ttl),
		logger:     logger,
	}

	s.setupRouter()
	return s, nil
}

// setupRouter configures the Chi router with all routes and middleware.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Basic Auth (if configured)
	if s.config.Auth != nil && s.config.Auth.Username != "" {
		r.Use(s.basicAuthMiddleware)
	}

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// API Documentation
	r.Get("/", s.handleAPIRedirect)
	r.Get("/api", s.handleAPIRedirect)
	r.Get("/api/", s.handleAPIDocs)

	// API v1 routes (Read-Only)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(noStoreMiddleware)

		r.Get("/version", s.handleGetVersion)

		// History
		r.Get("/history", s.handleGetHistory)
		r.Get("/history/latest", s.handleGetLatestHistory)
		r.Get("/history/{id}", s.handleGetEvent)

		// OTA channels
		r.Get("/channels/{channel}/latest", s.handleGetChannelLatest)

		// Metrics
		r.Get("/metrics", s.handlePrometheusMetrics)
	})

	s.router = r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting API server",
		zap.String("listen", s.config.Listen),
		zap.String("version", version.Version),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router (useful for testing).
func (s *Server) Router() chi.Router {
	return s.router
}
