package migrate_test

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/migrate"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// every pooled connection to :memory: would otherwise see its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count == 1
}

func TestRunnerAppliesEmbeddedMigrations(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	var out bytes.Buffer
	runner, err := migrate.NewRunner(db, config.DBDriverSQLite, migrate.Source(""), &out)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(ctx, "up"); err != nil {
		t.Fatalf("up: %v", err)
	}
	if !tableExists(t, db, "carts") || !tableExists(t, db, "cart_lines") {
		t.Fatalf("expected cart tables after up")
	}
	version, err := runner.Version(ctx)
	if err != nil || version != 20260301120500 {
		t.Fatalf("unexpected version %d err=%v", version, err)
	}

	// a second up is a no-op
	if err := runner.Run(ctx, "up"); err != nil {
		t.Fatalf("repeat up: %v", err)
	}

	out.Reset()
	if err := runner.Run(ctx, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "20260301120000") || !strings.Contains(out.String(), "applied") {
		t.Fatalf("unexpected status output:\n%s", out.String())
	}
}

func TestRunnerMigrateToAndRedo(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	runner, err := migrate.NewRunner(db, config.DBDriverSQLite, migrate.Source(""), nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	if err := runner.MigrateTo(ctx, "20260301120000"); err != nil {
		t.Fatalf("migrate to first: %v", err)
	}
	if !tableExists(t, db, "carts") || tableExists(t, db, "cart_lines") {
		t.Fatalf("expected only carts after migrating to the first version")
	}

	if err := runner.Run(ctx, "up"); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := runner.Run(ctx, "redo"); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if !tableExists(t, db, "cart_lines") {
		t.Fatalf("redo must re-apply the last migration")
	}

	if err := runner.MigrateTo(ctx, "20260301120000"); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if tableExists(t, db, "cart_lines") {
		t.Fatalf("expected cart_lines dropped after migrating down")
	}

	if err := runner.MigrateTo(ctx, "latest"); err == nil {
		t.Fatalf("expected non-numeric version to be rejected")
	}
	if err := runner.Run(ctx, "sideways"); err == nil {
		t.Fatalf("expected unknown command to be rejected")
	}
}
