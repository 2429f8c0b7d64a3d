package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

// Logger writes one access log line per request once the handler chain has run.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("request completed",
			slog.String(logkey.RequestID, ctxmanage.GetRequestIdOfRequest(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
