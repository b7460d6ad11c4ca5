// Package txlog implements the event-logged transaction protocol that is
// the heart of durability. A Transaction wraps one task's replay cursor:
// Enter either replays a previously recorded result from the event log,
// or opens a window for the guest to perform a real effect; Exit commits
// that effect's result as a new event, after rechecking that this worker
// still owns the task.
package txlog

import (
	"context"

	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/store"
)

// Transaction drives the enter/exit protocol for a single task's
// execution. It is not safe for concurrent use: a task has exactly one
// driver goroutine at a time (see runtime/supervise.go).
type Transaction struct {
	db     *gorm.DB
	events store.EventStore
	tasks  store.TaskStore

	taskID    int64
	workerID  int64
	maxEvents int32

	currentIndex int64
	inFlight     bool
	pendingLabel string
	heldTx       *gorm.DB // non-nil between an is_db=true miss and its Exit
	heldIsDB     bool
}

func New(db *gorm.DB, events store.EventStore, tasks store.TaskStore, taskID, workerID int64, maxEvents int32) *Transaction {
	return &Transaction{
		db:        db,
		events:    events,
		tasks:     tasks,
		taskID:    taskID,
		workerID:  workerID,
		maxEvents: maxEvents,
	}
}

// CurrentIndex is the next index that will be consulted on Enter.
func (t *Transaction) CurrentIndex() int64 { return t.currentIndex }

// InDBTransaction reports whether a miss is currently held open for SQL use
// (Enter was called with is_db=true and missed). The guest SQL capability
// makes the same check through DBTx, which returns nil when this is false.
func (t *Transaction) InDBTransaction() bool { return t.inFlight && t.heldIsDB }

// DBTx returns the held database transaction for an in-flight is_db=true
// operation, or nil if none is held. The guest SQL capability uses this so
// that its statements and the eventual event append commit atomically.
func (t *Transaction) DBTx() *gorm.DB {
	if t.inFlight && t.heldIsDB {
		return t.heldTx
	}
	return nil
}

// Enter begins one workflow transaction. On a hit (value recorded at the
// current index) it returns that value and does not advance into an
// in-flight state; the guest must not call Exit. On a miss it returns
// hit=false, puts the Transaction in an in-flight state, and the guest is
// expected to perform the real effect and call Exit.
func (t *Transaction) Enter(ctx context.Context, label string, isDB bool) (value []byte, hit bool, err error) {
	if t.inFlight {
		return nil, false, &PreconditionError{Reason: "transaction_enter called while already inside a transaction"}
	}

	tx := t.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	ev, err := t.events.At(dbctx.Context{Ctx: ctx, Tx: tx}, t.taskID, t.currentIndex)
	if err != nil {
		tx.Rollback()
		return nil, false, err
	}

	if ev != nil {
		if ev.Label != label {
			tx.Rollback()
			return nil, false, &DeterminismError{
				TaskID:        t.taskID,
				Index:         t.currentIndex,
				RecordedLabel: ev.Label,
				ObservedLabel: label,
			}
		}
		if err := tx.Commit().Error; err != nil {
			return nil, false, err
		}
		t.currentIndex++
		return ev.Value, true, nil
	}

	if t.maxEvents > 0 && t.currentIndex >= int64(t.maxEvents) {
		tx.Rollback()
		return nil, false, &EventCapError{TaskID: t.taskID, Cap: t.maxEvents}
	}

	if isDB {
		t.heldTx = tx
		t.heldIsDB = true
	} else {
		if err := tx.Commit().Error; err != nil {
			return nil, false, err
		}
		t.heldTx = nil
		t.heldIsDB = false
	}
	t.inFlight = true
	t.pendingLabel = label
	return nil, false, nil
}

// Exit commits the result of the real effect performed after a miss. It
// rechecks ownership inside the same transaction that appends the event;
// if ownership has been lost to another worker, it returns an
// OwnershipLostError and the caller must abort the task locally without
// further writes.
func (t *Transaction) Exit(ctx context.Context, result []byte) error {
	if !t.inFlight {
		return &PreconditionError{Reason: "transaction_exit called without a matching transaction_enter"}
	}
	label := t.pendingLabel
	index := t.currentIndex

	tx := t.heldTx
	if tx == nil {
		tx = t.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return tx.Error
		}
	}

	owned, err := t.tasks.CheckOwnership(dbctx.Context{Ctx: ctx, Tx: tx}, t.taskID, t.workerID)
	if err != nil {
		tx.Rollback()
		t.resetInFlight()
		return err
	}
	if !owned {
		tx.Rollback()
		t.resetInFlight()
		return &OwnershipLostError{TaskID: t.taskID}
	}

	if err := t.events.Append(dbctx.Context{Ctx: ctx, Tx: tx}, t.taskID, index, label, result); err != nil {
		tx.Rollback()
		t.resetInFlight()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		t.resetInFlight()
		return err
	}

	t.currentIndex++
	t.resetInFlight()
	return nil
}

func (t *Transaction) resetInFlight() {
	t.inFlight = false
	t.heldTx = nil
	t.heldIsDB = false
	t.pendingLabel = ""
}
