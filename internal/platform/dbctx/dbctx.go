// Package dbctx bundles a request-scoped context.Context with an optional
// in-flight GORM transaction, so repository methods can be called either
// standalone (Tx == nil, falls back to the pool handle) or nested inside a
// caller's transaction without changing their signature.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background returns a Context with no transaction, suitable for call sites
// outside of a request or task execution.
func Background() Context {
	return Context{Ctx: context.Background()}
}
