package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxwork/durable/internal/domain"
)

type fakeRunner struct {
	run func(ctx context.Context, task *domain.Task, workerID int64)
}

func (f *fakeRunner) Run(ctx context.Context, task *domain.Task, workerID int64) {
	f.run(ctx, task, workerID)
}

func TestSupervisorBoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	var running, maxRunning int
	var mu sync.Mutex

	runner := &fakeRunner{run: func(ctx context.Context, task *domain.Task, workerID int64) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
	}}

	sup := NewSupervisor(2, runner)
	require.True(t, sup.TryAcquire())
	require.True(t, sup.TryAcquire())
	assert.False(t, sup.TryAcquire(), "third slot should be unavailable at max_tasks=2")

	sup.Release()
	sup.Release()

	require.True(t, sup.TryAcquire())
	sup.Dispatch(context.Background(), &domain.Task{ID: 1}, 9, nil)
	close(release)

	// Allow the dispatched goroutine to finish and release its slot.
	require.Eventually(t, func() bool { return sup.TryAcquire() }, time.Second, time.Millisecond)
}

func TestSupervisorRecoversPanicIntoOnPanic(t *testing.T) {
	sup := NewSupervisor(1, &fakeRunner{run: func(ctx context.Context, task *domain.Task, workerID int64) {
		panic("boom")
	}})

	done := make(chan struct{})
	var gotTask *domain.Task
	var gotPanic any

	require.True(t, sup.TryAcquire())
	sup.Dispatch(context.Background(), &domain.Task{ID: 42}, 1, func(task *domain.Task, recovered any) {
		gotTask = task
		gotPanic = recovered
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onPanic was not called")
	}

	assert.Equal(t, int64(42), gotTask.ID)
	assert.Equal(t, "boom", gotPanic)
	assert.True(t, sup.TryAcquire(), "slot should be released after the panicking task finishes")
}
