package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/store"
)

// fakeWorkerStore implements store.WorkerStore with in-memory state, for
// exercising Leader without a database using a
// table-driven fake-repository test style.
type fakeWorkerStore struct {
	liveIDs []int64
	liveErr error
}

func (f *fakeWorkerStore) Register(dbctx.Context) (int64, error)       { return 0, nil }
func (f *fakeWorkerStore) Heartbeat(dbctx.Context, int64) (bool, error) { return true, nil }
func (f *fakeWorkerStore) DeleteExpired(dbctx.Context, time.Duration) ([]int64, error) {
	return nil, nil
}
func (f *fakeWorkerStore) Delete(dbctx.Context, int64) error { return nil }
func (f *fakeWorkerStore) LiveIDs(dbctx.Context, time.Duration) ([]int64, error) {
	return f.liveIDs, f.liveErr
}

var _ store.WorkerStore = (*fakeWorkerStore)(nil)

func TestLeaderIsSmallestLiveID(t *testing.T) {
	workers := &fakeWorkerStore{liveIDs: []int64{3, 5, 9}}

	leader := NewLeader(workers, 3, time.Minute)
	ok, err := leader.IsLeader(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	notLeader := NewLeader(workers, 5, time.Minute)
	ok, err = notLeader.IsLeader(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLeaderFalseWhenNoLiveWorkers(t *testing.T) {
	leader := NewLeader(&fakeWorkerStore{liveIDs: nil}, 1, time.Minute)
	ok, err := leader.IsLeader(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
