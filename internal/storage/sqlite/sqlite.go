// Package sqlite implements the scheduler's repository interfaces on an
// embedded SQLite database for single-machine desktop deployments.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	sqlite3 "modernc.org/sqlite"

	"github.com/rezkam/growmaster/internal/application/coordinator"
	"github.com/rezkam/growmaster/internal/application/generator"
	"github.com/rezkam/growmaster/internal/application/notifier"
	"github.com/rezkam/growmaster/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store provides the SQLite implementation of all repository interfaces
// consumed by the generator, coordinator, and notifier.
type Store struct {
	db *sql.DB
}

// Compile-time verification that Store implements all repository interfaces.
var (
	_ generator.Repository   = (*Store)(nil)
	_ coordinator.Repository = (*Store)(nil)
	_ notifier.Repository    = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection sidesteps writer contention entirely; the
	// scheduler's load is tiny.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// classify wraps retryable SQLite failures (busy or locked database) as
// transient; everything else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case 5, 6, 261, 262: // SQLITE_BUSY, SQLITE_LOCKED and extended codes
			return domain.Transient(err)
		}
	}
	return err
}
