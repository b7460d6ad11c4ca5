// Package db wires the two database handles the runtime needs: a GORM
// connection for CRUD, claim queries, and migrations, and a jackc/pgx/v5
// pool for the guest-visible typed SQL bridge and the LISTEN/NOTIFY event
// source, neither of which gorm exposes directly. Both point at the same
// Postgres database.
package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fluxwork/durable/internal/platform/envutil"
	"github.com/fluxwork/durable/internal/platform/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Database struct {
	GORM *gorm.DB
	Pool *pgxpool.Pool
	log  *logger.Logger
}

// DSN builds the connection string from POSTGRES_* environment variables.
func DSN() string {
	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "durable")
	sslmode := envutil.String("POSTGRES_SSLMODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
}

// Open connects both handles and applies pending migrations.
func Open(ctx context.Context, baseLog *logger.Logger) (*Database, error) {
	l := baseLog.With("component", "Database")
	dsn := DSN()

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	d := &Database{GORM: gdb, Pool: pool, log: l}
	if err := d.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

// migrate applies every embedded .sql file in lexical order. Migrations are
// idempotent (CREATE ... IF NOT EXISTS / CREATE OR REPLACE) so re-running
// the full set on every startup is safe, keeping the mechanical migration
// story simple.
func (d *Database) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := d.Pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		d.log.Info("applied migration", "file", name)
	}
	return nil
}

func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.GORM != nil {
		if sqlDB, err := d.GORM.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
