package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// cancelCtx is the context a streamSSE worker observes; it is cancelled
// when the client disconnects.
type cancelCtx = context.Context

const ssePing = 15 * time.Second

// streamSSE sets the SSE response headers and runs work on the request's
// cancellable context until it returns or the client disconnects.
func streamSSE(c *gin.Context, work func(ctx cancelCtx)) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		work(c.Request.Context())
	}()

	heartbeat := time.NewTicker(ssePing)
	defer heartbeat.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-done:
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSE is called from inside a streamSSE work func; it is only safe
// to call from that same goroutine since gin's ResponseWriter is not
// otherwise synchronized, which streamSSE guarantees by running work on
// its own single goroutine and only ever ticking a heartbeat from the
// caller's goroutine in between writes.
func writeSSE(c *gin.Context, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\n", event)
	for _, line := range strings.Split(string(body), "\n") {
		fmt.Fprintf(c.Writer, "data: %s\n", line)
	}
	fmt.Fprint(c.Writer, "\n")
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
}
