package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	migrationTimeout = 60 * time.Second
	migrationDir     = "sql"
	driverName       = "pgx"
	dialect          = "postgres"

	CommandUp      = "up"
	CommandDown    = "down"
	CommandStatus  = "status"
	CommandVersion = "version"
	CommandReset   = "reset"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

// Supported lists the goose commands accepted by Run.
func Supported() []string {
	return []string{CommandUp, CommandDown, CommandStatus, CommandVersion, CommandReset}
}

// Run applies command against the PostgreSQL database at dsn.
func Run(ctx context.Context, dsn string, command string) error {
	if !isSupported(command) {
		return fmt.Errorf("unsupported migration command %q", command)
	}
	migrationCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("sql open: %w", err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.RunContext(migrationCtx, command, db, migrationDir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func isSupported(command string) bool {
	for _, supported := range Supported() {
		if command == supported {
			return true
		}
	}
	return false
}
