package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxwork/durable/internal/platform/ctxutil"
)

const headerTraceID = "X-Trace-Id"

// AttachTraceContext assigns or propagates a trace id: it prefers an
// inbound X-Trace-Id header, falls back to the active span's trace id,
// and otherwise mints a new uuid.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(headerTraceID))
		if traceID == "" {
			spanCtx := trace.SpanContextFromContext(c.Request.Context())
			if spanCtx.HasTraceID() {
				traceID = spanCtx.TraceID().String()
			}
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{TraceID: traceID})
		c.Request = c.Request.WithContext(ctx)
		c.Set("trace_id", traceID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Next()
	}
}
