package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fluxwork/durable/internal/platform/ctxutil"
	"github.com/fluxwork/durable/internal/platform/logger"
)

// RequestLogger logs one structured line per request: method, path,
// status, duration, and trace id when one has been attached.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		td := ctxutil.GetTraceData(c.Request.Context())

		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if td != nil && td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
