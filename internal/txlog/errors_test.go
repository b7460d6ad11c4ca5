package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminismErrorMessage(t *testing.T) {
	err := &DeterminismError{TaskID: 5, Index: 2, RecordedLabel: "sql", ObservedLabel: "http"}
	assert.Contains(t, err.Error(), "task 5")
	assert.Contains(t, err.Error(), `recorded label "sql"`)
	assert.Contains(t, err.Error(), `observed "http"`)
}

func TestEventCapErrorMessage(t *testing.T) {
	err := &EventCapError{TaskID: 9, Cap: 100}
	assert.Contains(t, err.Error(), "task 9")
	assert.Contains(t, err.Error(), "100")
}

func TestOwnershipLostErrorMessage(t *testing.T) {
	err := &OwnershipLostError{TaskID: 1}
	assert.Contains(t, err.Error(), "ownership lost")
}

func TestPreconditionErrorMessage(t *testing.T) {
	err := &PreconditionError{Reason: "double enter"}
	assert.Contains(t, err.Error(), "double enter")
}
