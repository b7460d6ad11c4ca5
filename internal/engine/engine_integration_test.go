package engine_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fluxwork/durable/internal/db"
	"github.com/fluxwork/durable/internal/domain"
	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/store"
)

// TestEngineLaunchClaimCompleteLifecycle exercises the task lifecycle
// against a real Postgres instance. It is skipped unless
// DURABLE_RUN_POSTGRES_INTEGRATION_TESTS=true is set, following the
// env-gated integration test convention used elsewhere in this module.
func TestEngineLaunchClaimCompleteLifecycle(t *testing.T) {
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
	notifications := store.NewNotificationStore(database.GORM)
	logs := store.NewLogStore(database.GORM)
	programs := store.NewProgramStore(database.GORM)
	workers := store.NewWorkerStore(database.GORM)

	eng := engine.New(database.GORM, tasks, events, notifications, logs, programs, workers, log)

	program, err := programs.Register(dbctx.Context{Ctx: ctx}, "lifecycle-test", []byte("module-bytes"))
	require.NoError(t, err)

	workerID, err := workers.Register(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	defer workers.Delete(dbctx.Context{Ctx: ctx}, workerID)

	task, err := eng.LaunchTask(ctx, "lifecycle-task", program.ID, nil, []byte(`{"x":1}`))
	require.NoError(t, err)
	require.Equal(t, domain.TaskActive, task.State)

	claimed, err := eng.Claim(ctx, workerID)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, task.ID, claimed.ID)

	require.NoError(t, eng.Complete(ctx, task.ID, workerID))

	got, err := tasks.Get(dbctx.Context{Ctx: ctx}, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskComplete, got.State)
	require.Nil(t, got.RunningOn)
}

// TestEngineFailRecordsSystemEvent exercises the Fail path, confirming the
// failure cause is recorded at the reserved system event index.
func TestEngineFailRecordsSystemEvent(t *testing.T) {
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
	notifications := store.NewNotificationStore(database.GORM)
	logs := store.NewLogStore(database.GORM)
	programs := store.NewProgramStore(database.GORM)
	workers := store.NewWorkerStore(database.GORM)

	eng := engine.New(database.GORM, tasks, events, notifications, logs, programs, workers, log)

	program, err := programs.Register(dbctx.Context{Ctx: ctx}, "fail-test", []byte("module-bytes"))
	require.NoError(t, err)
	workerID, err := workers.Register(dbctx.Context{Ctx: ctx})
	require.NoError(t, err)
	defer workers.Delete(dbctx.Context{Ctx: ctx}, workerID)

	task, err := eng.LaunchTask(ctx, "fail-task", program.ID, nil, nil)
	require.NoError(t, err)
	_, err = eng.Claim(ctx, workerID)
	require.NoError(t, err)

	require.NoError(t, eng.Fail(ctx, task.ID, workerID, assertError("boom")))

	got, err := tasks.Get(dbctx.Context{Ctx: ctx}, task.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskFailed, got.State)

	cause, err := events.At(dbctx.Context{Ctx: ctx}, task.ID, domain.SystemEventIndex)
	require.NoError(t, err)
	require.NotNil(t, cause)
	require.Equal(t, "failure", cause.Label)
}

type assertError string

func (e assertError) Error() string { return string(e) }
