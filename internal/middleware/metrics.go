package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"social-service/internal/observability"
)

// Metrics records request counts and latency per route, skipping /metrics and /health.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/metrics", "/health":
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		observability.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
