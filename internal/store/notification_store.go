package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

type NotificationStore interface {
	// Insert records a notification for a task. The database trigger
	// (migrations/0001_init.sql) handles waking a suspended task; this
	// method just performs the insert.
	Insert(dbc dbctx.Context, taskID int64, event string, data []byte) (*domain.Notification, error)
	// Next returns and does not remove the oldest unconsumed notification
	// for a task (consumption happens via the transaction protocol's event
	// append, not via deletion here).
	Next(dbc dbctx.Context, taskID int64, after time.Time) (*domain.Notification, error)
}

type notificationStore struct{ db *gorm.DB }

func NewNotificationStore(db *gorm.DB) NotificationStore { return &notificationStore{db: db} }

func (s *notificationStore) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return s.db.WithContext(dbc.Ctx)
}

func (s *notificationStore) Insert(dbc dbctx.Context, taskID int64, event string, data []byte) (*domain.Notification, error) {
	n := &domain.Notification{TaskID: taskID, Event: event, Data: data, CreatedAt: time.Now().UTC()}
	if err := s.tx(dbc).Create(n).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (s *notificationStore) Next(dbc dbctx.Context, taskID int64, after time.Time) (*domain.Notification, error) {
	var n domain.Notification
	err := s.tx(dbc).
		Where("task_id = ? AND created_at > ?", taskID, after).
		Order("created_at ASC").
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}
