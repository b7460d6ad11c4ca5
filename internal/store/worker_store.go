package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

type WorkerStore interface {
	// Register inserts a new worker row and returns its assigned id.
	Register(dbc dbctx.Context) (int64, error)
	// Heartbeat bumps last_heartbeat for id. Returns false (no error) if the
	// row no longer exists, which tells the caller it has been evicted.
	Heartbeat(dbc dbctx.Context, id int64) (bool, error)
	// DeleteExpired removes worker rows whose heartbeat is older than
	// timeout. Their tasks are re-pooled automatically via the
	// running_on ON DELETE SET NULL foreign key.
	DeleteExpired(dbc dbctx.Context, timeout time.Duration) ([]int64, error)
	// Delete removes a single worker row (clean shutdown path).
	Delete(dbc dbctx.Context, id int64) error
	// LiveIDs returns the ids of all non-expired workers, ascending. The
	// smallest id is the leader.
	LiveIDs(dbc dbctx.Context, timeout time.Duration) ([]int64, error)
}

type workerStore struct{ db *gorm.DB }

func NewWorkerStore(db *gorm.DB) WorkerStore { return &workerStore{db: db} }

func (s *workerStore) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return s.db.WithContext(dbc.Ctx)
}

func (s *workerStore) Register(dbc dbctx.Context) (int64, error) {
	w := &domain.Worker{LastHeartbeat: time.Now().UTC()}
	if err := s.tx(dbc).Create(w).Error; err != nil {
		return 0, err
	}
	return w.ID, nil
}

func (s *workerStore) Heartbeat(dbc dbctx.Context, id int64) (bool, error) {
	res := s.tx(dbc).Model(&domain.Worker{}).
		Where("id = ?", id).
		Update("last_heartbeat", time.Now().UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *workerStore) DeleteExpired(dbc dbctx.Context, timeout time.Duration) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	var expired []domain.Worker
	if err := s.tx(dbc).Where("last_heartbeat < ?", cutoff).Find(&expired).Error; err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(expired))
	for i, w := range expired {
		ids[i] = w.ID
	}
	if err := s.tx(dbc).Where("id IN ?", ids).Delete(&domain.Worker{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *workerStore) Delete(dbc dbctx.Context, id int64) error {
	return s.tx(dbc).Where("id = ?", id).Delete(&domain.Worker{}).Error
}

func (s *workerStore) LiveIDs(dbc dbctx.Context, timeout time.Duration) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	var ids []int64
	err := s.tx(dbc).Model(&domain.Worker{}).
		Where("last_heartbeat >= ?", cutoff).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
