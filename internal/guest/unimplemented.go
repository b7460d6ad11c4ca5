package guest

import (
	"context"
	"errors"
)

// ErrSandboxUnconfigured is returned by UnimplementedEngine, the default
// Engine wired into cmd/durableworker. The bytecode sandbox itself is out
// of scope for this repository: everything upstream of Engine — the
// program store, the cache, the driver, the host capability surface — is
// exercised and tested against this interface, and a real sandbox is a
// drop-in Engine implementation at the call site in cmd/durableworker.
var ErrSandboxUnconfigured = errors.New("guest: no bytecode sandbox engine configured")

type UnimplementedEngine struct{}

func (UnimplementedEngine) Compile(ctx context.Context, module []byte) (Module, error) {
	return nil, ErrSandboxUnconfigured
}
