package engine

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestStaleProgramReferenceDetectsNotFound(t *testing.T) {
	assert.True(t, staleProgramReference(gorm.ErrRecordNotFound))
	assert.True(t, staleProgramReference(&pgconn.PgError{Code: foreignKeyViolation}))
}

func TestStaleProgramReferenceIgnoresUnrelatedErrors(t *testing.T) {
	assert.False(t, staleProgramReference(errors.New("connection reset")))
	assert.False(t, staleProgramReference(&pgconn.PgError{Code: "23505"}))
	assert.False(t, staleProgramReference(nil))
}
