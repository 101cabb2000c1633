// Package http provides the admin HTTP surface: health, readiness, and
// Prometheus metrics. It is never a business-request surface — key and
// user lifecycle operations are reached through cmd/app, not HTTP.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
)

// CustomLoggerMiddleware logs each admin HTTP request through slog instead
// of Gin's default logger, tagging every line with the request ID assigned
// by requestid.New so a log line can be traced back to one request.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", c.ClientIP()),
			slog.String("request_id", requestid.Get(c)),
		)
	}
}
