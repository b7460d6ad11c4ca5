// TaskStore implements the task state machine's storage side: the
// race-free claim primitive and the suspend/resume/terminal transitions.
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

type TaskStore interface {
	Create(dbc dbctx.Context, name string, programID int64, data []byte) (*domain.Task, error)
	Get(dbc dbctx.Context, id int64) (*domain.Task, error)

	// ClaimNext atomically claims one task that is either unassigned-active
	// or already assigned to self, using FOR UPDATE SKIP LOCKED so any
	// number of workers can race this query safely. Returns nil, nil if
	// nothing is claimable.
	ClaimNext(dbc dbctx.Context, workerID int64) (*domain.Task, error)

	// CheckOwnership reports whether workerID currently owns task id. Must
	// be called inside the same transaction as a write to the task's
	// events/notifications/log, so ownership can never be lost between
	// the check and the write it guards.
	CheckOwnership(dbc dbctx.Context, id int64, workerID int64) (bool, error)

	// Suspend moves an owned, active task to suspended, clearing
	// running_on. wakeupAt is nil for a notification-triggered suspension.
	Suspend(dbc dbctx.Context, id int64, workerID int64, wakeupAt *time.Time) error

	// Release returns an owned task to the active/unassigned pool without
	// changing its state. Nothing calls it: Worker.Stop does not release
	// in-flight tasks.
	Release(dbc dbctx.Context, id int64, workerID int64) error

	// Complete and Fail perform the terminal transitions; both clear
	// running_on and program_id and set completed_at.
	Complete(dbc dbctx.Context, id int64, workerID int64) error
	Fail(dbc dbctx.Context, id int64, workerID int64) error

	// ResumeTimedOut reactivates suspended tasks whose wakeup_at (minus the
	// configured margin) has passed; leader-only sweeper operation. Returns
	// the ids resumed.
	ResumeTimedOut(dbc dbctx.Context, margin time.Duration) ([]int64, error)
}

type taskStore struct{ db *gorm.DB }

func NewTaskStore(db *gorm.DB) TaskStore { return &taskStore{db: db} }

func (s *taskStore) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return s.db.WithContext(dbc.Ctx)
}

func (s *taskStore) Create(dbc dbctx.Context, name string, programID int64, data []byte) (*domain.Task, error) {
	t := &domain.Task{
		Name:      name,
		ProgramID: &programID,
		Data:      data,
		State:     domain.TaskActive,
	}
	if err := s.tx(dbc).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *taskStore) Get(dbc dbctx.Context, id int64) (*domain.Task, error) {
	var t domain.Task
	if err := s.tx(dbc).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ClaimNext is the race-free claim primitive:
//
//	UPDATE ... WHERE state='active' AND (running_on = w OR running_on IS NULL)
//	... FOR UPDATE SKIP LOCKED
//
// Any number of workers can run this concurrently: SKIP LOCKED means a row
// already locked by another worker's in-flight claim is simply skipped
// rather than waited on, so no two workers ever observe themselves as
// owning the same task.
func (s *taskStore) ClaimNext(dbc dbctx.Context, workerID int64) (*domain.Task, error) {
	var claimed *domain.Task
	err := s.tx(dbc).Transaction(func(txx *gorm.DB) error {
		var t domain.Task
		err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state = ? AND (running_on = ? OR running_on IS NULL)", domain.TaskActive, workerID).
			Order("created_at ASC").
			First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := txx.Model(&domain.Task{}).
			Where("id = ?", t.ID).
			Updates(map[string]interface{}{"running_on": workerID, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		t.RunningOn = &workerID
		claimed = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *taskStore) CheckOwnership(dbc dbctx.Context, id int64, workerID int64) (bool, error) {
	var count int64
	err := s.tx(dbc).Model(&domain.Task{}).
		Where("id = ? AND running_on = ?", id, workerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *taskStore) Suspend(dbc dbctx.Context, id int64, workerID int64, wakeupAt *time.Time) error {
	res := s.tx(dbc).Model(&domain.Task{}).
		Where("id = ? AND running_on = ?", id, workerID).
		Updates(map[string]interface{}{
			"state":      domain.TaskSuspended,
			"running_on": nil,
			"wakeup_at":  wakeupAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *taskStore) Release(dbc dbctx.Context, id int64, workerID int64) error {
	res := s.tx(dbc).Model(&domain.Task{}).
		Where("id = ? AND running_on = ?", id, workerID).
		Updates(map[string]interface{}{"running_on": nil, "updated_at": time.Now().UTC()})
	return res.Error
}

func (s *taskStore) Complete(dbc dbctx.Context, id int64, workerID int64) error {
	return s.terminal(dbc, id, workerID, domain.TaskComplete)
}

func (s *taskStore) Fail(dbc dbctx.Context, id int64, workerID int64) error {
	return s.terminal(dbc, id, workerID, domain.TaskFailed)
}

func (s *taskStore) terminal(dbc dbctx.Context, id int64, workerID int64, state domain.TaskState) error {
	now := time.Now().UTC()
	res := s.tx(dbc).Model(&domain.Task{}).
		Where("id = ? AND running_on = ?", id, workerID).
		Updates(map[string]interface{}{
			"state":        state,
			"running_on":   nil,
			"program_id":   nil,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *taskStore) ResumeTimedOut(dbc dbctx.Context, margin time.Duration) ([]int64, error) {
	now := time.Now().UTC()
	var ids []int64
	err := s.tx(dbc).Transaction(func(txx *gorm.DB) error {
		var due []domain.Task
		err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("state = ? AND wakeup_at IS NOT NULL AND wakeup_at <= ?", domain.TaskSuspended, now.Add(margin)).
			Find(&due).Error
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids = make([]int64, len(due))
		for i, t := range due {
			ids[i] = t.ID
		}
		return txx.Model(&domain.Task{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"state":      domain.TaskActive,
				"wakeup_at":  nil,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
