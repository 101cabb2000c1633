package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ohcore/fbekeyd/internal/config"
	"github.com/ohcore/fbekeyd/internal/metrics"
)

// Server is the admin HTTP surface: health and readiness, plus /metrics
// when SetupRouter is given a metrics provider. It never carries a
// business route — every key and user lifecycle operation is reached
// through cmd/app, never over the network.
type Server struct {
	server   *http.Server
	logger   *slog.Logger
	router   *gin.Engine
	reqGroup singleflight.Group
	cancelBg context.CancelFunc
}

// NewServer creates a new admin HTTP server.
func NewServer(host string, port int, logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter configures the Gin router with health/ready endpoints and,
// when metricsProvider is non-nil, a /metrics scrape endpoint alongside
// them (the dedicated MetricsServer also exposes one on its own port —
// both exist so a deployment can put /metrics behind a different network
// policy than /health without running two binaries).
func (s *Server) SetupRouter(cfg *config.Config, metricsProvider *metrics.Provider, metricsNamespace string) {
	router := gin.New()
	router.Use(gin.Recovery())

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	if cfg.RateLimitEnabled {
		bgCtx, cancel := context.WithCancel(context.Background())
		s.cancelBg = cancel
		router.Use(RateLimitMiddleware(bgCtx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized - call SetupRouter first")
	}

	s.server.Handler = s.router

	s.logger.Info("starting admin http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server and stops the rate
// limiter's background cleanup goroutine, if one was started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin http server")
	if s.cancelBg != nil {
		s.cancelBg()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	v, _, _ := s.reqGroup.Do("health", func() (interface{}, error) {
		return gin.H{"status": "healthy"}, nil
	})
	c.JSON(http.StatusOK, v)
}

// readinessHandler reports the daemon ready once it has finished its
// startup sequence; there is no database to probe here, only the
// in-process state the caller hands the container before starting this
// server, so readiness is a constant true once the server is serving.
func (s *Server) readinessHandler(c *gin.Context) {
	v, _, _ := s.reqGroup.Do("readiness", func() (interface{}, error) {
		return gin.H{"status": "ready"}, nil
	})
	c.JSON(http.StatusOK, v)
}
