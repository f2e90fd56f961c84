package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crisslavik/xStage/config"
	"github.com/crisslavik/xStage/engine"
	"github.com/crisslavik/xStage/history"
	"github.com/crisslavik/xStage/internal/metrics"
)

// Server exposes the conversion engine over HTTP.
type Server struct {
	cfg     config.ServerConfig
	engine  *engine.Engine
	history *history.Store
	metrics *metrics.Collector
	limiter *rate.Limiter
	logger  *zap.Logger

	httpServer *http.Server
}

// NewServer builds the API server. history and metrics may be nil.
func NewServer(cfg config.ServerConfig, eng *engine.Engine, hist *history.Store, collector *metrics.Collector, logger *zap.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		history: hist,
		metrics: collector,
		logger:  logger.With(zap.String("component", "api")),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitRPS)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/progress", s.handleProgress)
		r.Get("/availability", s.handleAvailability)
		r.Post("/availability/refresh", s.handleRefreshAvailability)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
