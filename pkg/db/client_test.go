package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

type widget struct {
	ID   int
	Code string `gorm:"uniqueIndex"`
}

func openClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.DBConfig{Driver: config.DBDriverSQLite, SQLitePath: "file:" + t.Name() + "?mode=memory&cache=shared"}
	client, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return client
}

func countWidgets(t *testing.T, client *Client) int64 {
	t.Helper()
	var n int64
	if err := client.DB().Model(&widget{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	client := openClient(t)

	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Code: "kept"}).Error
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Code: "dropped"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected fn error returned, got %v", err)
	}
	if got := countWidgets(t, client); got != 1 {
		t.Fatalf("expected rollback to leave 1 row, got %d", got)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	client := openClient(t)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&widget{Code: "panicked"})
			panic("kaboom")
		})
	}()
	if got := countWidgets(t, client); got != 0 {
		t.Fatalf("expected no rows after panic, got %d", got)
	}
}

func TestNewOpensSQLite(t *testing.T) {
	client := openClient(t)
	if client.Driver() != config.DBDriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", client.Driver())
	}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: config.DBDriverPostgres}, nil); err == nil {
		t.Fatal("expected error for missing dsn")
	}
	if _, err := New(context.Background(), config.DBConfig{Driver: "mysql"}, nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := New(context.Background(), config.DBConfig{Driver: config.DBDriverSQLite}, nil); err == nil {
		t.Fatal("expected error for missing sqlite path")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	client := openClient(t)
	if err := client.DB().Create(&widget{Code: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	dupErr := client.DB().Create(&widget{Code: "dup"}).Error
	if !IsUniqueViolation(dupErr, "") {
		t.Fatalf("expected sqlite duplicate to be detected, got %v", dupErr)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_cart_lines_cart_position"})
	if !IsUniqueViolation(pgErr, "") || !IsUniqueViolation(pgErr, "ux_cart_lines_cart_position") {
		t.Fatalf("expected postgres unique violation to match")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatalf("constraint filter must apply to postgres errors")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(nil, "") || IsUniqueViolation(errors.New("timeout"), "") {
		t.Fatalf("unrelated errors must not match")
	}
}

func TestQueryLoggerWritesSlowAndFailedOnly(t *testing.T) {
	var buf bytes.Buffer
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: &buf}), 100*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), stmt, nil)
	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected fast and not-found queries to stay silent, got %s", buf.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "db.query.slow") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(ctx, time.Now(), stmt, errors.New("syntax error"))
	if !strings.Contains(buf.String(), "db.query.failed") || !strings.Contains(buf.String(), "SELECT 1") {
		t.Fatalf("expected failed query entry, got %s", buf.String())
	}
}
