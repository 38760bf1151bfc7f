// Package server provides the HTTP server and routing for the dream engine.
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

	"github.com/aristath/dreamengine/internal/config"
	"github.com/aristath/dreamengine/internal/di"
	analyticshandlers "github.com/aristath/dreamengine/internal/modules/analytics/handlers"
	costshandlers "github.com/aristath/dreamengine/internal/modules/costs/handlers"
	dreamshandlers "github.com/aristath/dreamengine/internal/modules/dreams/handlers"
	evaluationhandlers "github.com/aristath/dreamengine/internal/modules/evaluation/handlers"
	settingshandlers "github.com/aristath/dreamengine/internal/modules/settings/handlers"
)

// requestTimeout bounds ordinary API requests. Evaluation, manual retest
// runs and the event stream are registered outside it.
const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container    // DI container with all services
	Jobs      *di.JobInstances // Registered cron jobs for manual triggering
	Port      int
	DevMode   bool
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	cfg       *config.Config
	container *di.Container
	jobs      *di.JobInstances
	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
		jobs:      cfg.Jobs,
		startedAt: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: route groups carry their own deadlines and the
		// event stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)

	systemHandlers := NewSystemHandlers(s.cfg.DataDir, c.Databases(), s.jobs.Scheduler, c.EventBus, c.Providers, s.startedAt, s.log)
	jobHandlers := NewJobHandlers(c.RetestScheduler, s.jobs, s.log)

	settingsHandler := settingshandlers.NewHandler(c.SettingsService, c.EventBus, s.log)
	settingsHandler.SetChangeHook(c.ReloadJobConfig)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		dreamshandlers.NewHandler(c.DreamRepo, c.EventBus, s.log).RegisterRoutes(r)
		costshandlers.NewHandler(c.CostTracker, s.cfg.UserDailyEvaluationLimit, s.log).RegisterRoutes(r)
		analyticshandlers.NewHandler(c.AnalyticsService, s.log).RegisterRoutes(r)
		settingsHandler.RegisterRoutes(r)
		systemHandlers.RegisterRoutes(r)
		jobHandlers.RegisterRoutes(r)
	})

	// Evaluation applies its own longer deadline
	evaluationhandlers.NewHandler(
		c.EvaluationService,
		c.EvaluationRepo,
		c.DreamRepo,
		c.CostTracker,
		c.EventBus,
		s.cfg.UserDailyEvaluationLimit,
		s.log,
	).RegisterRoutes(s.router)

	// A manual pass is bounded by the daily budget and the client connection
	s.router.Post("/api/jobs/retest/run", jobHandlers.HandleRunRetest)

	s.router.Get("/api/events/ws", NewEventsStreamHandler(c.EventBus, s.log).ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
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
