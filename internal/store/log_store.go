package store

import (
	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

type LogStore interface {
	// Append writes a log line at the next index for a task. Callers clamp
	// total bytes per transaction to max_log_bytes_per_transaction before
	// calling this (see guest/stream.go); this method itself just inserts.
	Append(dbc dbctx.Context, taskID, index int64, message string) error
	// NextIndex returns the index the next Append for a task should use.
	NextIndex(dbc dbctx.Context, taskID int64) (int64, error)
	ListFrom(dbc dbctx.Context, taskID int64, from int64) ([]domain.LogEntry, error)
}

type logStore struct{ db *gorm.DB }

func NewLogStore(db *gorm.DB) LogStore { return &logStore{db: db} }

func (s *logStore) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return s.db.WithContext(dbc.Ctx)
}

func (s *logStore) Append(dbc dbctx.Context, taskID, index int64, message string) error {
	e := &domain.LogEntry{TaskID: taskID, Index: index, Message: message}
	return s.tx(dbc).Create(e).Error
}

func (s *logStore) NextIndex(dbc dbctx.Context, taskID int64) (int64, error) {
	var max int64 = -1
	err := s.tx(dbc).Model(&domain.LogEntry{}).
		Select("COALESCE(MAX(index), -1)").
		Where("task_id = ?", taskID).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (s *logStore) ListFrom(dbc dbctx.Context, taskID int64, from int64) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	err := s.tx(dbc).
		Where("task_id = ? AND index >= ?", taskID, from).
		Order("index ASC").
		Find(&out).Error
	return out, err
}
