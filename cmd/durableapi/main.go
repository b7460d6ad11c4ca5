// Command durableapi serves the gin-based client surface: program
// registration, task launch, task/event/log reads, wait-for-terminal,
// and notifications.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxwork/durable/internal/client"
	"github.com/fluxwork/durable/internal/db"
	"github.com/fluxwork/durable/internal/engine"
	"github.com/fluxwork/durable/internal/eventsource"
	"github.com/fluxwork/durable/internal/httpapi"
	"github.com/fluxwork/durable/internal/observability"
	"github.com/fluxwork/durable/internal/platform/envutil"
	"github.com/fluxwork/durable/internal/platform/logger"
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

	shutdownTracing := observability.Init(ctx, log, observability.Config{
		ServiceName: "durableapi",
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

	listener := eventsource.New(database.Pool, log)
	go func() {
		if err := listener.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("event listener stopped", "error", err)
		}
	}()

	c := client.New(eng, events, logs, listener)
	router := httpapi.NewRouter(c, log)

	port := envutil.String("PORT", "8080")
	log.Info("api server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("server stopped", "error", err)
	}
}
