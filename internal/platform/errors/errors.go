// Package errors holds process-wide sentinel errors shared across layers.
// Domain-specific taxonomies (determinism violations, SQL errors, HTTP
// errors) live next to the code that produces them instead of here.
package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for a missing row. The stores do not
	// return it: their lookups return gorm.ErrRecordNotFound, or a nil row.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a unique/idempotency conflict a caller can retry.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOwnershipLost means the calling worker no longer owns the task it
	// is trying to mutate. Not a failure: callers must abort locally without
	// further writes, per the lost-ownership rule in the transaction
	// protocol.
	ErrOwnershipLost = errors.New("task ownership lost")
)
