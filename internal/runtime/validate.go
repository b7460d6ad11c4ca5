package runtime

import (
	"context"
	"time"

	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
)

// maxValidateInterval caps the fleet-scaled validate-workers interval so an
// enormous fleet still re-checks for dead peers at least once a day.
const maxValidateInterval = 24 * time.Hour

// validateInterval is heartbeat_timeout/2 · worker_count, capped at
// maxValidateInterval: roughly two collective dead-peer checks per
// heartbeat_timeout across the whole fleet, however large it grows.
func validateInterval(workerCount int, heartbeatTimeout, floor time.Duration) time.Duration {
	if workerCount < 1 {
		workerCount = 1
	}
	d := (heartbeatTimeout / 2) * time.Duration(workerCount)
	if d < floor {
		d = floor
	}
	if d > maxValidateInterval {
		d = maxValidateInterval
	}
	return d
}

// RunValidateWorkers periodically evicts workers whose heartbeat has gone
// silent for longer than timeout. Every worker runs this loop; two workers
// racing to delete the same expired row is safe, because DELETE of an
// already-deleted row affects zero rows. The tick interval is rescaled
// after every run from the live worker count, so a larger fleet checks
// less often per-worker rather than every worker hammering the database on
// the same fixed period regardless of size.
func RunValidateWorkers(ctx context.Context, eng *engine.Engine, leader *Leader, timeout, floor time.Duration, log *logger.Logger) {
	log = log.With("component", "validate-workers")
	timer := time.NewTimer(floor)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		ids, err := eng.Workers.LiveIDs(dbctx.Context{Ctx: ctx}, timeout)
		if err != nil {
			log.Warn("live worker lookup failed", "error", err)
			timer.Reset(floor)
			continue
		}
		timer.Reset(validateInterval(len(ids), timeout, floor))

		evicted, err := eng.EvictDeadWorkers(ctx, timeout)
		if err != nil {
			log.Warn("evict dead workers failed", "error", err)
			continue
		}
		if len(evicted) > 0 {
			log.Info("evicted dead workers", "worker_ids", evicted)
		}
	}
}
