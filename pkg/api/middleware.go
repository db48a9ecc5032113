package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs every request with method, path, status and latency.
// Health and metrics probes are skipped to keep the log readable.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
