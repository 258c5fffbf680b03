package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/fruteria-pos/pkg/config"
)

// DefaultDir is the migrations directory inside the embedded filesystem.
const DefaultDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// DialectFor maps a configured database driver to its goose dialect.
func DialectFor(driver string) (string, error) {
	switch driver {
	case config.DBDriverSQLite:
		return "sqlite3", nil
	case config.DBDriverPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("no goose dialect for driver %q", driver)
}

// Run executes a standard goose command (up, down, status, redo, reset)
// against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, driver string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := prepare(driver); err != nil {
		return err
	}

	// RunContext prints status output to stdout (goose internal)
	if err := goose.RunContext(ctx, command, db, DefaultDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver string, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := prepare(driver); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, DefaultDir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, DefaultDir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// Version returns the schema version recorded by goose.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if db == nil {
		return 0, fmt.Errorf("db is required")
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := prepare(driver); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return version, nil
}

func prepare(driver string) error {
	dialect, err := DialectFor(driver)
	if err != nil {
		return err
	}
	goose.SetBaseFS(embedded)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}
