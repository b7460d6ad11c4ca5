// Command durableworker runs the worker process loop: heartbeating,
// dead-peer eviction, leader-gated sweeping, and claim-dispatch of
// active tasks. It loads config, opens the database, wires the service
// layer, and runs until signaled.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxwork/durable/internal/db"
	"github.com/fluxwork/durable/internal/driver"
	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/guest"
	"github.com/fluxwork/durable/internal/observability"
	"github.com/fluxwork/durable/internal/platform/config"
	"github.com/fluxwork/durable/internal/platform/dbctx"
	"github.com/fluxwork/durable/internal/platform/envutil"
	"github.com/fluxwork/durable/internal/platform/logger"
	"github.com/fluxwork/durable/internal/programstore"
	"github.com/fluxwork/durable/internal/runtime"
	"github.com/fluxwork/durable/internal/store"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "production"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadFromEnv()

	shutdownTracing := observability.Init(ctx, log, observability.Config{
		ServiceName: "durableworker",
		Environment: envutil.String("ENVIRONMENT", "development"),
	})
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("otel shutdown", "error", err)
		}
	}()

	database, err := db.Open(ctx, log)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer database.Close()

	tasks := store.NewTaskStore(database.GORM)
	events := store.NewEventStore(database.GORM)
	notifications := store.NewNotificationStore(database.GORM)
	logs := store.NewLogStore(database.GORM)
	programs := store.NewProgramStore(database.GORM)
	workers := store.NewWorkerStore(database.GORM)

	eng := engine.New(database.GORM, tasks, events, notifications, logs, programs, workers, log)

	workerID, err := workers.Register(dbctx.Context{Ctx: ctx})
	if err != nil {
		log.Fatal("register worker", "error", err)
	}
	log.Info("worker registered", "worker_id", workerID)
	defer func() {
		if err := workers.Delete(dbctx.Context{Ctx: context.Background()}, workerID); err != nil {
			log.Warn("deregister worker on shutdown", "error", err)
		}
	}()

	listener := eventsource.New(database.Pool, log)
	go func() {
		if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("event listener stopped", "error", err)
		}
	}()

	cache := programstore.NewCache(guest.UnimplementedEngine{}, cfg.MaxConcurrentCompilations)
	drv := driver.New(
		database.GORM,
		eng,
		cache,
		events,
		tasks,
		programs,
		logs,
		notifications,
		listener,
		cfg.MaxWorkflowEvents,
		cfg.MaxLogBytesPerTransaction,
		cfg.MaxHTTPTimeout,
		cfg.MaxReturnedBufferLen,
		cfg.SuspendTimeout,
		log,
	)

	supervisor := runtime.NewSupervisor(cfg.MaxTasks, drv)
	w := runtime.NewWorker(
		workerID,
		eng,
		listener,
		supervisor,
		cfg.HeartbeatInterval,
		cfg.HeartbeatTimeout,
		cfg.SuspendMargin,
		cfg.WasmEntryTTL,
		log,
	)

	log.Info("worker starting", "worker_id", workerID)
	w.Start(ctx)
	log.Info("worker stopped", "worker_id", workerID)
}
