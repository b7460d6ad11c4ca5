// Package ctxutil carries trace correlation data through a context.Context
// so that logs and spans emitted deep inside a task's replay can be tied
// back to the request or task that originated them.
package ctxutil

import "context"

type traceKey struct{}

type TraceData struct {
	TraceID string
	TaskID  int64
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	if ctx == nil || td == nil {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceKey{}).(*TraceData)
	return td
}
