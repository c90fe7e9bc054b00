package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/media-registry/pkg/registry/api"
	"github.com/tendant/media-registry/pkg/registry/config"
)

// HTTPServer wraps the registry for HTTP access
type HTTPServer struct {
	comps    *config.Components
	config   *config.ServerConfig
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(comps *config.Components, serverConfig *config.ServerConfig, gatherer prometheus.Gatherer, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{
		comps:    comps,
		config:   serverConfig,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if s.comps.Metrics != nil {
		r.Use(s.comps.Metrics.Middleware())
	}

	// Health check
	r.Get("/health", s.handleHealth)
	if s.comps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	handler := api.NewRegistryHandler(s.comps.Registry, api.WithJWTSecret(s.config.JWTSecret))
	r.Mount("/api/v1", handler.Routes())

	return r
}

// HealthResponse is the response body for the health endpoint
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
}

// Health check endpoint
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Environment: s.config.Environment,
		Database:    s.config.DatabaseType,
	}

	if s.comps.Pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.comps.Pool.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "database ping failed", "err", err)
			resp.Status = "unhealthy"
			render.Status(r, http.StatusServiceUnavailable)
		}
	}

	render.JSON(w, r, resp)
}
