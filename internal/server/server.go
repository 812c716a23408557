// Package server provides the HTTP server for the monitor API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/david-crosby/Jamf-Monitor/internal/config"
	"github.com/david-crosby/Jamf-Monitor/internal/handler"
	"github.com/david-crosby/Jamf-Monitor/internal/health"
	"github.com/david-crosby/Jamf-Monitor/internal/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	handlers    *handler.Handlers
	healthCheck *health.HealthChecker
	errWriter   *handler.ErrorWriter
	logger      *zap.Logger
	cfg         *config.Config
}

// New creates a new HTTP server.
func New(cfg *config.Config, handlers *handler.Handlers, healthCheck *health.HealthChecker, errWriter *handler.ErrorWriter, logger *zap.Logger) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:      router,
		httpServer:  httpServer,
		handlers:    handlers,
		healthCheck: healthCheck,
		errWriter:   errWriter,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS([]string{"*"}),
	}

	if s.cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimit.RequestsPerSecond,
			s.cfg.RateLimit.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health check endpoints
	s.router.HandleFunc("/health/live", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// API v1 routes
	v1 := s.router.PathPrefix("/v1").Subrouter()

	// The summary route must register before the parameterized device
	// route so "status" is not read as a device id
	v1.HandleFunc("/devices/status/summary", s.handlers.GetStatusSummary).Methods(http.MethodGet)
	v1.HandleFunc("/devices", s.handlers.ListDevices).Methods(http.MethodGet)
	v1.HandleFunc("/devices/{device_id:[0-9]+}", s.handlers.GetDevice).Methods(http.MethodGet)

	v1.HandleFunc("/settings/thresholds", s.handlers.GetThresholds).Methods(http.MethodGet)
	v1.HandleFunc("/settings/thresholds", s.handlers.UpdateThresholds).Methods(http.MethodPut)
	v1.HandleFunc("/settings/monitored-groups", s.handlers.GetMonitoredGroups).Methods(http.MethodGet)
	v1.HandleFunc("/settings/monitored-groups", s.handlers.UpdateMonitoredGroups).Methods(http.MethodPut)

	v1.HandleFunc("/groups/smart", s.handlers.ListSmartGroups).Methods(http.MethodGet)
	v1.HandleFunc("/cache/sweep", s.handlers.SweepCache).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errWriter.WriteErrorResponse(w, http.StatusNotFound, handler.ErrorCodeInvalidRequest, "endpoint not found", r.Header.Get("X-Request-ID"))
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errWriter.WriteErrorResponse(w, http.StatusMethodNotAllowed, handler.ErrorCodeInvalidRequest, "method not allowed", r.Header.Get("X-Request-ID"))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
