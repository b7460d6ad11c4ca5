package txlog_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxwork/durable/internal/db"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/store"
	"github.com/fluxwork/durable/internal/txlog"
)

// TestEnterExitHitAndMiss exercises the event-logged transaction protocol
// against a real Postgres instance: a fresh task's first Enter is a miss
// (nothing recorded yet); replaying the same (taskID, index) is a hit that
// returns the previously recorded value without re-executing. Skipped
// unless DURABLE_RUN_POSTGRES_INTEGRATION_TESTS=true.
func TestEnterExitHitAndMiss(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("DURABLE_RUN_POSTGRES_INTEGRATION_TESTS")), "true") {
		t.Skip("set DURABLE_RUN_POSTGRES_INTEGRATION_TESTS=true to run against a real Postgres instance")
	}

	log, err := logger.New("development")
	require.NoError(t, err)

	ctx := context.Background()
	database, err := db.Open(ctx, log)
	require.NoError(t, err)
	defer database.Pool.Close()

	tasks := store.NewTaskStore(database.GORM)
	events := store.NewEventStore(database.GORM)
	programs := store.NewProgramStore(database.GORM)
	workers := store.NewWorkerStore(database.GORM)

	program, err := programs.Register(dbctx.Context{Ctx: ctx}, "txlog-test", []byte("module"))
	require.NoError(t, err)
	workerID, err := workers.Register(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	defer workers.Delete(dbctx.Context{Ctx: ctx}, workerID)

	task, err := tasks.Create(dbctx.Context{Ctx: ctx}, "txlog-task", program.ID, nil)
	require.NoError(t, err)
	claimed, err := tasks.ClaimNext(dbctx.Context{Ctx: ctx}, workerID)
	require.NoError(t, err)
	require.Equal(t, task.ID, claimed.ID)

	tx := txlog.New(database.GORM, events, tasks, task.ID, workerID, 1<<20)

	value, hit, err := tx.Enter(ctx, "step-1", false)
	require.NoError(t, err)
	require.False(t, hit, "first enter at a fresh index must be a miss")
	require.Nil(t, value)

	require.NoError(t, tx.Exit(ctx, []byte(`"result-1"`)))
	require.EqualValues(t, 1, tx.CurrentIndex())

	// Replay: a fresh Transaction at the same task starts index back at 0
	// and must replay the recorded value rather than treat it as new work.
	replay := txlog.New(database.GORM, events, tasks, task.ID, workerID, 1<<20)
	value, hit, err = replay.Enter(ctx, "step-1", false)
	require.NoError(t, err)
	require.True(t, hit, "replaying a recorded index must be a hit")
	require.JSONEq(t, `"result-1"`, string(value))
}

// TestEnterDeterminismMismatch confirms a replay that observes a different
// label than what was recorded fails loudly instead of silently
// continuing.
func TestEnterDeterminismMismatch(t *testing.T) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("DURABLE_RUN_POSTGRES_INTEGRATION_TESTS")), "true") {
		t.Skip("set DURABLE_RUN_POSTGRES_INTEGRATION_TESTS=true to run against a real Postgres instance")
	}

	log, err := logger.New("development")
	require.NoError(t, err)

	ctx := context.Background()
	database, err := db.Open(ctx, log)
	require.NoError(t, err)
	defer database.Pool.Close()

	tasks := store.NewTaskStore(database.GORM)
	events := store.NewEventStore(database.GORM)
	programs := store.NewProgramStore(database.GORM)
	workers := store.NewWorkerStore(database.GORM)

	program, err := programs.Register(dbctx.Context{Ctx: ctx}, "txlog-determinism-test", []byte("module"))
	require.NoError(t, err)
	workerID, err := workers.Register(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	defer workers.Delete(dbctx.Context{Ctx: ctx}, workerID)

	task, err := tasks.Create(dbctx.Context{Ctx: ctx}, "determinism-task", program.ID, nil)
	require.NoError(t, err)
	_, err = tasks.ClaimNext(dbctx.Context{Ctx: ctx}, workerID)
	require.NoError(t, err)

	tx := txlog.New(database.GORM, events, tasks, task.ID, workerID, 1<<20)
	_, _, err = tx.Enter(ctx, "step-a", false)
	require.NoError(t, err)
	require.NoError(t, tx.Exit(ctx, []byte(`1`)))

	replay := txlog.New(database.GORM, events, tasks, task.ID, workerID, 1<<20)
	_, _, err = replay.Enter(ctx, "step-b", false)
	require.Error(t, err)
	_, ok := err.(*txlog.DeterminismError)
	require.True(t, ok, "expected a *txlog.DeterminismError, got %T", err)
}
