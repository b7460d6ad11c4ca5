// Command durablemigrate applies the embedded schema migrations and
// exits. db.Open already applies every pending migration idempotently,
// so this binary exists only to run that step without also starting a
// worker or API server, e.g. as a one-shot init container.
package main

import (
	"context"

	"github.com/fluxwork/durable/internal/db"
	"github.com/fluxwork/durable/internal/platform/envutil"
	"github.com/fluxwork/durable/internal/platform/logger"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "production"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	database, err := db.Open(context.Background(), log)
	if err != nil {
		log.Fatal("migrate", "error", err)
	}
	defer database.Close()

	log.Info("migrations applied")
}
