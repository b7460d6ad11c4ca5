package guest

import (
	"context"
	"sync"

	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/store"
)

// StreamCapability is the guest's one real (non-event-replayed) output
// stream: log lines, clamped to max_log_bytes_per_transaction. Unlike
// SQL/HTTP/notify, writing a log line is not itself wrapped in a
// transaction_enter/exit pair — the log table is write-only
// append-on-replay-too, so replaying a transaction naturally re-emits the
// same lines without needing a recorded value to replay.
type StreamCapability interface {
	WriteLog(ctx context.Context, taskID int64, message string) error
}

// logStream tracks cumulative bytes written across every WriteLog call
// made through one instance (one host transaction, in driver.Driver's
// sense: the span of a single task dispatch), rather than capping each
// message independently, so a burst of small log lines is clamped the
// same way one big one would be.
type logStream struct {
	logs     store.LogStore
	maxBytes int

	mu      sync.Mutex
	written int
}

func NewLogStream(logs store.LogStore, maxBytesPerTransaction int) StreamCapability {
	return &logStream{logs: logs, maxBytes: maxBytesPerTransaction}
}

// WriteLog never fails because of the cap: bytes beyond
// max_log_bytes_per_transaction for this transaction are silently dropped,
// truncating the message (and, once the cap is already spent, writing
// nothing at all) instead of rejecting the call. Errors from the log store
// itself are returned.
func (s *logStream) WriteLog(ctx context.Context, taskID int64, message string) error {
	s.mu.Lock()
	room := s.maxBytes - s.written
	if room <= 0 {
		s.mu.Unlock()
		return nil
	}
	if len(message) > room {
		message = message[:room]
	}
	s.written += len(message)
	s.mu.Unlock()

	if message == "" {
		return nil
	}

	dbc := dbctx.Context{Ctx: ctx}
	index, err := s.logs.NextIndex(dbc, taskID)
	if err != nil {
		return err
	}
	return s.logs.Append(dbc, taskID, index, message)
}
