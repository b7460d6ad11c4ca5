package runtime

import (
	"context"
	"time"

	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/store"
)

// Leader answers "am I the leader" by the smallest-live-worker-id rule: no
// separate election protocol is needed, since every worker can
// independently compute the same answer from the same heartbeat table.
type Leader struct {
	workers store.WorkerStore
	selfID  int64
	timeout time.Duration
}

func NewLeader(workers store.WorkerStore, selfID int64, heartbeatTimeout time.Duration) *Leader {
	return &Leader{workers: workers, selfID: selfID, timeout: heartbeatTimeout}
}

func (l *Leader) IsLeader(ctx context.Context) (bool, error) {
	ids, err := l.workers.LiveIDs(dbctx.Context{Ctx: ctx}, l.timeout)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	return ids[0] == l.selfID, nil
}
