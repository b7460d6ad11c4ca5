// Package engine is the orchestration layer above internal/store: it
// composes the task state machine, event log, notifications, logs and
// program registry into task lifecycle operations, wrapping cross-store
// writes in a single database transaction wherever atomicity across
// entities is required.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/store"
)

// foreignKeyViolation is the Postgres SQLSTATE for a foreign-key
// constraint failure (insert/update referencing a row that no longer
// exists).
const foreignKeyViolation = "23503"

// staleProgramReference reports whether err signals that programID was
// not found (already GC'd, or never registered) rather than some other
// failure: either Programs.Get's not-found, or a foreign-key violation
// from Tasks.Create racing a concurrent GC sweep between the Get and the
// Create.
func staleProgramReference(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

var tracer = otel.Tracer("github.com/fluxwork/durable/internal/engine")

type Engine struct {
	db *gorm.DB

	Tasks         store.TaskStore
	Events        store.EventStore
	Notifications store.NotificationStore
	Logs          store.LogStore
	Programs      store.ProgramStore
	Workers       store.WorkerStore

	log *logger.Logger
}

func New(db *gorm.DB, tasks store.TaskStore, events store.EventStore, notifications store.NotificationStore, logs store.LogStore, programs store.ProgramStore, workers store.WorkerStore, log *logger.Logger) *Engine {
	return &Engine{
		db:            db,
		Tasks:         tasks,
		Events:        events,
		Notifications: notifications,
		Logs:          logs,
		Programs:      programs,
		Workers:       workers,
		log:           log,
	}
}

// LaunchTask registers a new task against an already-registered program,
// refreshing the program's last_used marker (when it is more than an hour
// stale) in the same transaction as the insert.
//
// module carries the program's bytecode for the case where programID turns
// out to be stale: a GC sweep can collect a program between the time a
// client resolved its id and the time it calls LaunchTask. When that
// happens (Programs.Get finds nothing, or the launch transaction's insert
// hits a foreign-key violation racing the same sweep) and module is
// non-empty, LaunchTask re-registers it to get a fresh id, hash-idempotent,
// and retries once rather than failing the launch. Callers that already
// know their program can't have been collected (recently registered in the
// same request, e.g.) may pass a nil module; the original error then
// propagates unchanged.
func (e *Engine) LaunchTask(ctx context.Context, name string, programID int64, module, data []byte) (*domain.Task, error) {
	task, err := e.launchTask(ctx, name, programID, data)
	if err == nil || len(module) == 0 || !staleProgramReference(err) {
		return task, err
	}

	program, regErr := e.Programs.Register(dbctx.Context{Ctx: ctx}, name, module)
	if regErr != nil {
		return nil, regErr
	}
	return e.launchTask(ctx, name, program.ID, data)
}

func (e *Engine) launchTask(ctx context.Context, name string, programID int64, data []byte) (*domain.Task, error) {
	var task *domain.Task
	err := e.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: txx}
		if _, err := e.Programs.Get(dbc, programID); err != nil {
			return err
		}
		if err := e.Programs.TouchLaunch(dbc, programID); err != nil {
			return err
		}
		t, err := e.Tasks.Create(dbc, name, programID, data)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Claim hands the caller one claimable task, or nil if the pool is empty.
func (e *Engine) Claim(ctx context.Context, workerID int64) (*domain.Task, error) {
	ctx, span := tracer.Start(ctx, "engine.Claim", trace.WithAttributes(attribute.Int64("durable.worker_id", workerID)))
	defer span.End()

	task, err := e.Tasks.ClaimNext(dbctx.Context{Ctx: ctx}, workerID)
	if task != nil {
		span.SetAttributes(attribute.Int64("durable.task_id", task.ID))
	}
	return task, err
}

// Complete performs the active -> complete transition.
func (e *Engine) Complete(ctx context.Context, taskID, workerID int64) error {
	return e.Tasks.Complete(dbctx.Context{Ctx: ctx}, taskID, workerID)
}

// Suspend performs the active -> suspended transition. wakeupAt is nil when
// the task is only waiting on a notification.
func (e *Engine) Suspend(ctx context.Context, taskID, workerID int64, wakeupAt *time.Time) error {
	return e.Tasks.Suspend(dbctx.Context{Ctx: ctx}, taskID, workerID, wakeupAt)
}

// failureCause is the JSON shape recorded at domain.SystemEventIndex when a
// task fails.
type failureCause struct {
	Message string `json:"message"`
}

// Fail records cause as the system event at index -1 and performs the
// active -> failed transition, atomically. A worker that has lost
// ownership should not call this; the transaction protocol's Exit already
// returns an OwnershipLostError that the driver treats as a silent local
// abort instead.
func (e *Engine) Fail(ctx context.Context, taskID, workerID int64, cause error) error {
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}
	payload, err := json.Marshal(failureCause{Message: message})
	if err != nil {
		return err
	}
	return e.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: txx}
		owned, err := e.Tasks.CheckOwnership(dbc, taskID, workerID)
		if err != nil {
			return err
		}
		if !owned {
			return nil
		}
		if err := e.Events.Append(dbc, taskID, domain.SystemEventIndex, "failure", payload); err != nil {
			return err
		}
		return e.Tasks.Fail(dbc, taskID, workerID)
	})
}

// Notify enqueues an external notification for a task. The 0001_init.sql
// trigger wakes a suspended task and clears its wakeup_at as part of the
// same insert, so this method does not need to touch the task row itself.
func (e *Engine) Notify(ctx context.Context, taskID int64, event string, data []byte) (*domain.Notification, error) {
	return e.Notifications.Insert(dbctx.Context{Ctx: ctx}, taskID, event, data)
}

// ResumeDue reactivates suspended tasks whose wakeup has passed (within
// margin). Intended to be called only by the elected leader.
func (e *Engine) ResumeDue(ctx context.Context, margin time.Duration) ([]int64, error) {
	return e.Tasks.ResumeTimedOut(dbctx.Context{Ctx: ctx}, margin)
}

// EvictDeadWorkers deletes worker rows whose heartbeat is older than
// timeout; the running_on ON DELETE SET NULL foreign key re-pools their
// tasks automatically. Every worker's validate loop calls it; concurrent
// calls are safe because an already-deleted row is simply not matched.
func (e *Engine) EvictDeadWorkers(ctx context.Context, timeout time.Duration) ([]int64, error) {
	return e.Workers.DeleteExpired(dbctx.Context{Ctx: ctx}, timeout)
}

// GCPrograms deletes unreferenced, stale programs. Intended to be called
// only by the elected leader.
func (e *Engine) GCPrograms(ctx context.Context, ttl time.Duration) (int64, error) {
	return e.Programs.GC(dbctx.Context{Ctx: ctx}, ttl)
}
