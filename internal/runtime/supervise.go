package runtime

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/fluxwork/durable/internal/domain"
)

// Runner executes one claimed task to its next suspension point (or to a
// terminal state) and is responsible for calling back into
// internal/engine to record the outcome. It is implemented by
// internal/driver, which wires a txlog.Transaction and the guest sandbox
// together; runtime only knows about admission control, not execution.
type Runner interface {
	Run(ctx context.Context, task *domain.Task, workerID int64)
}

// Supervisor bounds the number of tasks a worker executes concurrently to
// max_tasks. It is a plain counting semaphore: task execution itself has
// no notion of priority.
type Supervisor struct {
	sem    *semaphore.Weighted
	runner Runner
}

func NewSupervisor(maxTasks int, runner Runner) *Supervisor {
	if maxTasks <= 0 {
		maxTasks = 1
	}
	return &Supervisor{sem: semaphore.NewWeighted(int64(maxTasks)), runner: runner}
}

// TryAcquire reserves one admission slot. The claim loop should only pull
// a task off the database once this returns true, so a worker never holds
// more claimed-but-unexecuted tasks than it can actually run.
func (s *Supervisor) TryAcquire() bool { return s.sem.TryAcquire(1) }

func (s *Supervisor) Release() { s.sem.Release(1) }

// Dispatch runs task on its own goroutine and releases the admission slot
// when it finishes, recovering a panicking Runner into a task failure
// instead of crashing the worker process.
func (s *Supervisor) Dispatch(ctx context.Context, task *domain.Task, workerID int64, onPanic func(task *domain.Task, recovered any)) {
	go func() {
		defer s.Release()
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(task, r)
			}
		}()
		s.runner.Run(ctx, task, workerID)
	}()
}
