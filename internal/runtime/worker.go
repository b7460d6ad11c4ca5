// Package runtime is the worker process loop: claim and dispatch,
// heartbeating, dead-peer eviction, leader-only sweeping, and
// cooperative shutdown. The claim loop is woken by Postgres NOTIFY with a
// poll-interval fallback rather than a bare ticker.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/platform/logger"
)

// pollFallback is how long the claim loop waits for a "task-inserted"
// notification before checking the database anyway. A fallback is
// required because a NOTIFY delivered while nobody is listening (e.g.
// between a worker's Acquire and LISTEN) is lost, and because a task
// re-pooled by worker eviction or ResumeDue doesn't raise a fresh
// "task-inserted" notification at all.
const pollFallback = 2 * time.Second

type Worker struct {
	ID  int64
	log *logger.Logger

	engine     *engine.Engine
	listener   *eventsource.Listener
	supervisor *Supervisor
	leader     *Leader
	shutdown   ShutdownFlag

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	suspendMargin     time.Duration
	wasmTTL           time.Duration

	wg sync.WaitGroup
}

func NewWorker(id int64, eng *engine.Engine, listener *eventsource.Listener, supervisor *Supervisor, heartbeatInterval, heartbeatTimeout, suspendMargin, wasmTTL time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		ID:                id,
		log:               log.With("component", "worker", "worker_id", id),
		engine:            eng,
		listener:          listener,
		supervisor:        supervisor,
		leader:            NewLeader(eng.Workers, id, heartbeatTimeout),
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		suspendMargin:     suspendMargin,
		wasmTTL:           wasmTTL,
	}
}

// Start launches the heartbeat, validate and leader-gated sweep loops, and the
// claim-dispatch loop, all stopping when ctx is cancelled. Start returns
// once every loop has exited.
func (w *Worker) Start(ctx context.Context) {
	loops := []func(context.Context){
		func(c context.Context) { RunHeartbeat(c, w.engine.Workers, w.ID, w.heartbeatInterval, &w.shutdown, w.log) },
		func(c context.Context) {
			RunValidateWorkers(c, w.engine, w.leader, w.heartbeatTimeout, w.heartbeatInterval, w.log)
		},
		func(c context.Context) {
			RunSweeper(c, w.engine, w.leader, w.suspendMargin, w.wasmTTL, w.heartbeatInterval, w.log)
		},
		w.runClaimLoop,
	}
	for _, fn := range loops {
		w.wg.Add(1)
		go func(fn func(context.Context)) {
			defer w.wg.Done()
			fn(ctx)
		}(fn)
	}
	w.wg.Wait()
}

// Stop marks the worker for cooperative shutdown: the claim loop stops
// pulling new tasks, but in-flight ones are left to finish naturally
// (their goroutines hold the admission semaphore until they return).
func (w *Worker) Stop() { w.shutdown.Set() }

func (w *Worker) runClaimLoop(ctx context.Context) {
	woken, unsub := w.listener.Subscribe(eventsource.ChannelTaskInserted)
	defer unsub()

	for {
		if ctx.Err() != nil {
			return
		}
		if w.shutdown.IsSet() {
			return
		}
		if !w.supervisor.TryAcquire() {
			w.waitOrTick(ctx, woken)
			continue
		}

		task, err := w.engine.Claim(ctx, w.ID)
		if err != nil {
			w.supervisor.Release()
			w.log.Warn("claim failed", "error", err)
			w.waitOrTick(ctx, woken)
			continue
		}
		if task == nil {
			w.supervisor.Release()
			w.waitOrTick(ctx, woken)
			continue
		}

		w.supervisor.Dispatch(ctx, task, w.ID, func(t *domain.Task, recovered any) {
			w.log.Error("task runner panicked", "task_id", t.ID, "panic", recovered)
			if failErr := w.engine.Fail(ctx, t.ID, w.ID, panicAsError(recovered)); failErr != nil {
				w.log.Error("failed to record panic failure", "task_id", t.ID, "error", failErr)
			}
		})
	}
}

type recoveredPanic struct{ value any }

func (p *recoveredPanic) Error() string { return fmt.Sprintf("task runner panic: %v", p.value) }

func panicAsError(v any) error { return &recoveredPanic{value: v} }

func (w *Worker) waitOrTick(ctx context.Context, woken <-chan int64) {
	select {
	case <-ctx.Done():
	case <-woken:
	case <-time.After(pollFallback):
	}
}
