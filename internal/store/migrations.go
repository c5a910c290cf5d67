package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sessions/*.sql
var sessionsMigrations embed.FS

//go:embed migrations/vectors/*.sql
var vectorsMigrations embed.FS

//go:embed migrations/agent/*.sql
var agentMigrations embed.FS

func migrateSessionsDB(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, sessionsMigrations, "migrations/sessions")
}

func migrateVectorsDB(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, vectorsMigrations, "migrations/vectors")
}

func migrateAgentDB(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, db, agentMigrations, "migrations/agent")
}

// runMigrations applies pending migrations from fsys/dir against db. goose's
// dialect name is "sqlite3" regardless of which driver opened db (mattn or
// modernc), since the dialect governs SQL generation, not the driver.
func runMigrations(ctx context.Context, db *sql.DB, fsys embed.FS, dir string) error {
	goose.SetBaseFS(fsys)
	goose.SetVerbose(false)
	goose.SetLogger(goose.NopLogger())
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("store: apply migrations in %s: %w", dir, err)
	}
	return nil
}
