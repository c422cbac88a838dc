// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/montage/internal/api"
	"github.com/stwalsh4118/montage/internal/config"
	"github.com/stwalsh4118/montage/internal/db"
	"github.com/stwalsh4118/montage/internal/logger"
	"github.com/stwalsh4118/montage/internal/media"
	"github.com/stwalsh4118/montage/internal/metrics"
	"github.com/stwalsh4118/montage/internal/middleware"
	"github.com/stwalsh4118/montage/internal/montage"
	"github.com/stwalsh4118/montage/internal/scheduler"
	"github.com/stwalsh4118/montage/internal/timeline"
)

// Server represents the HTTP server
type Server struct {
	config         *config.Config
	db             *db.DB
	repos          *db.Repositories
	scanner        *media.Scanner
	montageService *montage.Service
	manager        *montage.Manager
	metrics        *metrics.Metrics
	router         *gin.Engine
	server         *http.Server
}

// Dependencies lets callers replace the pieces New would otherwise build
type Dependencies struct {
	Scheduler scheduler.Scheduler
	Backend   montage.Backend
	Scanner   *media.Scanner
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) *Server {
	return NewWithDependencies(cfg, database, Dependencies{})
}

// NewWithDependencies creates a server, building any dependency left nil
func NewWithDependencies(cfg *config.Config, database *db.DB, deps Dependencies) *Server {
	repos := db.NewRepositories(database)

	if deps.Scheduler == nil {
		deps.Scheduler = scheduler.NewRealtime(cfg.Playback.FrameInterval)
	}
	if deps.Backend == nil {
		deps.Backend = montage.NewBackend(cfg.Media, deps.Scheduler.Now)
	}
	if deps.Scanner == nil {
		deps.Scanner = media.NewScanner(repos)
	}

	met := metrics.New()
	manager := montage.NewManager(montage.ManagerOptions{
		Repos:     repos,
		Timelines: timeline.NewService(repos),
		Backend:   deps.Backend,
		Scheduler: deps.Scheduler,
		Config:    cfg.Playback,
		Metrics:   met,
	})

	s := &Server{
		config:         cfg,
		db:             database,
		repos:          repos,
		scanner:        deps.Scanner,
		montageService: montage.NewService(repos),
		manager:        manager,
		metrics:        met,
	}
	s.setupRouter()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return s
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger())           // Custom zerolog request logger
	s.router.Use(gin.Recovery())                       // Panic recovery
	s.router.Use(cors.Default())                       // CORS support (allows all origins)
	s.router.Use(metrics.RequestMiddleware(s.metrics)) // Request and error counters

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler(func() {
		s.metrics.SetActiveSessions(s.manager.ActiveSessions())
	})))

	apiGroup := s.router.Group("/api")
	api.SetupHealthRoutes(apiGroup, s.db, s.manager)
	api.SetupMediaRoutes(apiGroup, s.scanner, s.repos, s.config.Media.LibraryPath)
	api.SetupMontageRoutes(apiGroup, s.montageService, s.manager)
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the playback manager and then the HTTP server. It blocks
// until the server stops; a graceful Shutdown returns nil.
func (s *Server) Start() error {
	if err := s.manager.Start(); err != nil {
		return fmt.Errorf("failed to start playback manager: %w", err)
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Str("media_backend", s.config.Media.Backend).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Stop accepting requests before sessions go away
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Close every session, recording open runs as stopped
	if s.manager != nil {
		s.manager.Stop()
	}

	// Stop the scanner cleanup goroutine
	if s.scanner != nil {
		s.scanner.Stop()
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
