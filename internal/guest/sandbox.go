// Package guest defines the boundary between the host runtime and
// sandboxed guest bytecode: the sandbox engine itself (compiling and
// instantiating guest modules) is consumed entirely through interfaces,
// since no concrete bytecode runtime is wired up here (see DESIGN.md) —
// this package only fixes the capability surface a concrete engine
// binding would wire into a guest's imports.
package guest

import (
	"context"
	"time"

	guestsql "github.com/fluxwork/durable/internal/guest/sql"
)

// Engine compiles guest bytecode into a Module. A concrete binding (not
// provided here) would wrap whatever sandbox runtime is actually chosen.
type Engine interface {
	Compile(ctx context.Context, module []byte) (Module, error)
}

// Module is a compiled, not-yet-running guest program.
type Module interface {
	Instantiate(ctx context.Context, imports HostImports) (Instance, error)
}

// Instance is one running guest execution. Run drives it until it either
// finishes or reaches a suspension point; internal/driver calls Run once
// per dispatch and translates the Outcome into engine.Engine calls.
type Instance interface {
	Run(ctx context.Context, input []byte) (Outcome, error)
}

type OutcomeKind int

const (
	OutcomeComplete OutcomeKind = iota
	OutcomeSuspendTimer
	OutcomeSuspendNotification
	OutcomeFailed
)

// Outcome is what a guest run produced. At most one of Result,
// WakeupAt, or FailureCause is meaningful, selected by Kind
// (OutcomeSuspendNotification uses none of them).
type Outcome struct {
	Kind         OutcomeKind
	Result       []byte
	WakeupAt     *time.Time
	FailureCause error
}

// HostImports is the full ABI surface a sandbox engine binds into a
// guest's imports: transaction enter/exit, notifications, HTTP, SQL, log
// stream, clock, entropy.
type HostImports struct {
	Transaction TransactionCapability
	Notify      NotifyCapability
	HTTP        HTTPCapability
	SQL         SQLCapability
	Stream      StreamCapability
	Clock       Clock
	Entropy     Entropy
}

// TransactionCapability is the guest-visible half of the enter/exit
// protocol; internal/txlog.Transaction is the host-side implementation a
// concrete binding adapts this to.
type TransactionCapability interface {
	Enter(ctx context.Context, label string, isDB bool) (value []byte, hit bool, err error)
	Exit(ctx context.Context, result []byte) error
}

// SQLCapability is an alias for guestsql.Capability so that HostImports
// can reference it without every caller importing the guest/sql package
// under a different name.
type SQLCapability = guestsql.Capability
