// Package driver implements runtime.Runner: it compiles (or reuses) a
// task's program, wires a fresh txlog.Transaction and the rest of the
// guest.HostImports for it, drives the instance to its next suspension
// point, and translates the outcome back into internal/engine calls. This
// is the seam between the abstract sandbox engine in internal/guest and
// the concrete database-backed task state machine.
package driver

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/guest"
	guestsql "github.com/fluxwork/durable/internal/guest/sql"
	"github.com/fluxwork/durable/internal/platform/ctxutil"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/programstore"
	"github.com/fluxwork/durable/internal/store"
	"github.com/fluxwork/durable/internal/txlog"
)

var tracer = otel.Tracer("github.com/fluxwork/durable/internal/driver")

var errMissingProgram = errors.New("task has no program_id")

type Driver struct {
	db     *gorm.DB
	engine *engine.Engine
	cache  *programstore.Cache

	events        store.EventStore
	tasks         store.TaskStore
	programs      store.ProgramStore
	logs          store.LogStore
	notifications store.NotificationStore
	listener      *eventsource.Listener

	maxWorkflowEvents    int32
	maxLogBytesPerTx     int
	maxHTTPTimeout       time.Duration
	maxReturnedBufferLen int
	suspendTimeout       time.Duration

	log *logger.Logger
}

func New(
	db *gorm.DB,
	eng *engine.Engine,
	cache *programstore.Cache,
	events store.EventStore,
	tasks store.TaskStore,
	programs store.ProgramStore,
	logs store.LogStore,
	notifications store.NotificationStore,
	listener *eventsource.Listener,
	maxWorkflowEvents int32,
	maxLogBytesPerTx int,
	maxHTTPTimeout time.Duration,
	maxReturnedBufferLen int,
	suspendTimeout time.Duration,
	log *logger.Logger,
) *Driver {
	return &Driver{
		db:                   db,
		engine:               eng,
		cache:                cache,
		events:               events,
		tasks:                tasks,
		programs:             programs,
		logs:                 logs,
		notifications:        notifications,
		listener:             listener,
		maxWorkflowEvents:    maxWorkflowEvents,
		maxLogBytesPerTx:     maxLogBytesPerTx,
		maxHTTPTimeout:       maxHTTPTimeout,
		maxReturnedBufferLen: maxReturnedBufferLen,
		suspendTimeout:       suspendTimeout,
		log:                  log.With("component", "driver"),
	}
}

// Run implements runtime.Runner. It never returns an error to its caller:
// every failure mode either records a task failure through d.engine.Fail
// or, for a lost-ownership race, aborts silently.
func (d *Driver) Run(ctx context.Context, task *domain.Task, workerID int64) {
	ctx, span := tracer.Start(ctx, "driver.Run", trace.WithAttributes(
		attribute.Int64("durable.task_id", task.ID),
		attribute.Int64("durable.worker_id", workerID),
	))
	defer span.End()

	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TaskID: task.ID})
	log := d.log.With("task_id", task.ID, "worker_id", workerID)

	if task.ProgramID == nil {
		d.fail(ctx, task, workerID, errMissingProgram)
		return
	}
	program, err := d.programs.Get(dbctx.Context{Ctx: ctx}, *task.ProgramID)
	if err != nil {
		d.fail(ctx, task, workerID, err)
		return
	}

	module, release, err := d.cache.Acquire(ctx, program)
	if err != nil {
		log.Warn("compile failed", "error", err)
		d.fail(ctx, task, workerID, err)
		return
	}
	defer release()

	tx := txlog.New(d.db, d.events, d.tasks, task.ID, workerID, d.maxWorkflowEvents)
	imports := guest.HostImports{
		Transaction: tx,
		Notify: guest.NewNotifier(func(ctx context.Context, taskID int64, event string, data []byte) error {
			_, err := d.engine.Notify(ctx, taskID, event, data)
			return err
		}, d.notifications, d.listener),
		HTTP:    guest.NewHTTPClient(d.maxHTTPTimeout, d.maxReturnedBufferLen),
		SQL:     guestsql.New(tx.DBTx, d.maxReturnedBufferLen),
		Stream:  guest.NewLogStream(d.logs, d.maxLogBytesPerTx),
		Clock:   guest.SystemClock{},
		Entropy: guest.SystemEntropy{},
	}

	instance, err := module.Instantiate(ctx, imports)
	if err != nil {
		d.fail(ctx, task, workerID, err)
		return
	}

	outcome, err := instance.Run(ctx, task.Data)
	if err != nil {
		if _, ok := err.(*txlog.OwnershipLostError); ok {
			log.Info("ownership lost, aborting locally")
			return
		}
		d.fail(ctx, task, workerID, err)
		return
	}

	d.applyOutcome(ctx, task, workerID, outcome)
}

// applyOutcome implements the in-process-vs-DB suspension split: a timer
// deadline closer than suspend_timeout is waited out right here, blocking
// this goroutine (which still holds its admission slot) and then
// re-driving the task, rather than paying a round trip through the
// suspended state and the leader's sweep. Replaying re-enters
// already-recorded events and reaches the same sleep operation, which by
// then has passed its deadline.
func (d *Driver) applyOutcome(ctx context.Context, task *domain.Task, workerID int64, outcome guest.Outcome) {
	switch outcome.Kind {
	case guest.OutcomeComplete:
		if err := d.engine.Complete(ctx, task.ID, workerID); err != nil {
			d.log.Warn("complete failed", "task_id", task.ID, "error", err)
		}
	case guest.OutcomeSuspendNotification:
		if err := d.engine.Suspend(ctx, task.ID, workerID, nil); err != nil {
			d.log.Warn("suspend (notification) failed", "task_id", task.ID, "error", err)
		}
	case guest.OutcomeSuspendTimer:
		d.handleTimerSuspend(ctx, task, workerID, outcome.WakeupAt)
	case guest.OutcomeFailed:
		d.fail(ctx, task, workerID, outcome.FailureCause)
	}
}

func (d *Driver) handleTimerSuspend(ctx context.Context, task *domain.Task, workerID int64, wakeupAt *time.Time) {
	if wakeupAt == nil {
		if err := d.engine.Suspend(ctx, task.ID, workerID, nil); err != nil {
			d.log.Warn("suspend (timer, no deadline) failed", "task_id", task.ID, "error", err)
		}
		return
	}
	remaining := time.Until(*wakeupAt)
	if remaining >= d.suspendTimeout {
		if err := d.engine.Suspend(ctx, task.ID, workerID, wakeupAt); err != nil {
			d.log.Warn("suspend (timer) failed", "task_id", task.ID, "error", err)
		}
		return
	}
	if remaining > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(remaining):
		}
	}
	d.Run(ctx, task, workerID)
}

func (d *Driver) fail(ctx context.Context, task *domain.Task, workerID int64, cause error) {
	if err := d.engine.Fail(ctx, task.ID, workerID, cause); err != nil {
		d.log.Warn("fail transition failed", "task_id", task.ID, "error", err)
	}
}
