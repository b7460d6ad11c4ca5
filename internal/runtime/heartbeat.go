package runtime

import (
	"context"
	"math/rand"
	"time"

	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/store"
)

// jitterFrac is how far below the configured interval a heartbeat tick may
// fall. Jitter is downward-only so the worst-case gap between heartbeats
// never exceeds the configured interval (a fixed interval plus upward
// jitter could stack past heartbeat_timeout and cause spurious eviction).
const jitterFrac = 0.25

func jitteredInterval(interval time.Duration) time.Duration {
	delta := time.Duration(float64(interval) * jitterFrac * rand.Float64())
	return interval - delta
}

// RunHeartbeat sends this worker's liveness signal until ctx is cancelled
// or the row is found to have been evicted, at which point it sets
// shutdown so the rest of the worker stops claiming new work.
func RunHeartbeat(ctx context.Context, workers store.WorkerStore, workerID int64, interval time.Duration, shutdown *ShutdownFlag, log *logger.Logger) {
	log = log.With("component", "heartbeat", "worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitteredInterval(interval)):
		}
		alive, err := workers.Heartbeat(dbctx.Context{Ctx: ctx}, workerID)
		if err != nil {
			log.Warn("heartbeat failed", "error", err)
			continue
		}
		if !alive {
			log.Error("worker row evicted, shutting down")
			shutdown.Set()
			return
		}
	}
}
