package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// createCORSMiddleware creates a CORS middleware for the admin surface.
// CORS is disabled by default since the admin surface is meant to be
// scraped by infrastructure (Prometheus, a load-balancer health probe),
// not called from a browser. Enable only if a browser-based dashboard
// needs direct access.
func createCORSMiddleware(enabled bool, origins []string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured - CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled", slog.Int("origin_count", len(origins)), slog.Any("origins", origins))

	config := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(config)
}
