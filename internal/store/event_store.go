package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

type EventStore interface {
	// At returns the event at (taskID, index), or nil if none exists yet
	// (a "miss" in the transaction protocol's enter() sense).
	At(dbc dbctx.Context, taskID, index int64) (*domain.Event, error)
	// Append inserts a new event. The caller is responsible for having
	// verified ownership inside the same transaction first.
	Append(dbc dbctx.Context, taskID, index int64, label string, value []byte) error
	// ListFrom returns events with index >= from, ascending, for replay or
	// client observation.
	ListFrom(dbc dbctx.Context, taskID int64, from int64) ([]domain.Event, error)
	// Count returns the number of index >= 0 events recorded for a task.
	// max_workflow_events is enforced by txlog from its current index, not
	// through Count.
	Count(dbc dbctx.Context, taskID int64) (int64, error)
}

type eventStore struct{ db *gorm.DB }

func NewEventStore(db *gorm.DB) EventStore { return &eventStore{db: db} }

func (s *eventStore) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return s.db.WithContext(dbc.Ctx)
}

func (s *eventStore) At(dbc dbctx.Context, taskID, index int64) (*domain.Event, error) {
	var e domain.Event
	err := s.tx(dbc).Where("task_id = ? AND index = ?", taskID, index).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *eventStore) Append(dbc dbctx.Context, taskID, index int64, label string, value []byte) error {
	e := &domain.Event{TaskID: taskID, Index: index, Label: label, Value: value}
	return s.tx(dbc).Create(e).Error
}

func (s *eventStore) ListFrom(dbc dbctx.Context, taskID int64, from int64) ([]domain.Event, error) {
	var out []domain.Event
	err := s.tx(dbc).
		Where("task_id = ? AND index >= ?", taskID, from).
		Order("index ASC").
		Find(&out).Error
	return out, err
}

func (s *eventStore) Count(dbc dbctx.Context, taskID int64) (int64, error) {
	var count int64
	err := s.tx(dbc).Model(&domain.Event{}).
		Where("task_id = ? AND index >= 0", taskID).
		Count(&count).Error
	return count, err
}
