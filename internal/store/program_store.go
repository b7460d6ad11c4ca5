// Package store holds the repository layer over the domain entities:
// every method takes a dbctx.Context so it can run standalone or nested
// inside a caller's transaction, and returns domain types rather than
// leaking gorm.
package store

import (
	"crypto/sha256"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/platform/dbctx"
)

// lastUsedRefreshWindow is how stale last_used must be before a launch
// bothers to bump it: amortized, only when stale by more than one hour.
const lastUsedRefreshWindow = time.Hour

// minWasmTTL is the floor enforced on wasm_entry_ttl so a just-registered
// module can't be GC'd out from under a client that just launched it.
const minWasmTTL = 2 * time.Hour

type ProgramStore interface {
	// Register hashes the bytes and inserts a wasm row, or returns the
	// existing row if the hash is already registered (setting its last_used
	// to now). Idempotent on hash.
	Register(dbc dbctx.Context, name string, module []byte) (*domain.Program, error)
	Get(dbc dbctx.Context, id int64) (*domain.Program, error)
	// TouchLaunch refreshes last_used for id if it is older than the
	// refresh window, inside the caller's (launch) transaction.
	TouchLaunch(dbc dbctx.Context, id int64) error
	// GC deletes programs with no referencing task and last_used older than
	// ttl (floored at minWasmTTL). Returns the number of rows deleted.
	GC(dbc dbctx.Context, ttl time.Duration) (int64, error)
}

type programStore struct{ db *gorm.DB }

func NewProgramStore(db *gorm.DB) ProgramStore { return &programStore{db: db} }

func (s *programStore) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return s.db.WithContext(dbc.Ctx)
}

func (s *programStore) Register(dbc dbctx.Context, name string, module []byte) (*domain.Program, error) {
	sum := sha256.Sum256(module)
	hash := sum[:]
	now := time.Now().UTC()

	p := &domain.Program{Hash: hash, Name: name, Module: module, LastUsed: now}
	err := s.tx(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_used"}),
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		// OnConflict path with some drivers doesn't populate the struct;
		// re-read by hash to get the authoritative row.
		return s.getByHash(dbc, hash)
	}
	return p, nil
}

func (s *programStore) getByHash(dbc dbctx.Context, hash []byte) (*domain.Program, error) {
	var p domain.Program
	if err := s.tx(dbc).Where("hash = ?", hash).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *programStore) Get(dbc dbctx.Context, id int64) (*domain.Program, error) {
	var p domain.Program
	if err := s.tx(dbc).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *programStore) TouchLaunch(dbc dbctx.Context, id int64) error {
	now := time.Now().UTC()
	res := s.tx(dbc).Model(&domain.Program{}).
		Where("id = ? AND last_used < ?", id, now.Add(-lastUsedRefreshWindow)).
		Updates(map[string]interface{}{"last_used": now})
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (s *programStore) GC(dbc dbctx.Context, ttl time.Duration) (int64, error) {
	if ttl < minWasmTTL {
		ttl = minWasmTTL
	}
	cutoff := time.Now().UTC().Add(-ttl)
	res := s.tx(dbc).
		Where("last_used < ?", cutoff).
		Where("id NOT IN (SELECT program_id FROM task WHERE program_id IS NOT NULL)").
		Delete(&domain.Program{})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
