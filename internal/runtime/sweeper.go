package runtime

import (
	"context"
	"time"

	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/platform/logger"
)

// RunSweeper performs the two leader-only background jobs: resuming
// suspended tasks whose wakeup_at has passed, and garbage-collecting
// programs unreferenced by any task past wasm_entry_ttl.
func RunSweeper(ctx context.Context, eng *engine.Engine, leader *Leader, suspendMargin, wasmTTL, interval time.Duration, log *logger.Logger) {
	log = log.With("component", "sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		isLeader, err := leader.IsLeader(ctx)
		if err != nil {
			log.Warn("leader check failed", "error", err)
			continue
		}
		if !isLeader {
			continue
		}

		resumed, err := eng.ResumeDue(ctx, suspendMargin)
		if err != nil {
			log.Warn("resume timed-out tasks failed", "error", err)
		} else if len(resumed) > 0 {
			log.Info("resumed timed-out tasks", "task_ids", resumed)
		}

		deleted, err := eng.GCPrograms(ctx, wasmTTL)
		if err != nil {
			log.Warn("program gc failed", "error", err)
		} else if deleted > 0 {
			log.Info("garbage collected unreferenced programs", "count", deleted)
		}
	}
}
