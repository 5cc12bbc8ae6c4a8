package http

import (
	"log/slog"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/gin-gonic/gin"
)

// loggingMiddleware records one line per request. Request headers are
// never logged since they carry credentials.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		}

		if c.Writer.Status() >= 500 {
			logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
		} else {
			logger.InfoContext(c.Request.Context(), "request completed", attrs...)
		}
	}
}
