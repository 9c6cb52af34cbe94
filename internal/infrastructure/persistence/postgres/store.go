// Package postgres implements the scheduler's repository interfaces on
// PostgreSQL with hand-written parameterised SQL over pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/growmaster/internal/application/coordinator"
	"github.com/rezkam/growmaster/internal/application/generator"
	"github.com/rezkam/growmaster/internal/application/notifier"
	"github.com/rezkam/growmaster/internal/domain"
)

// querier is the subset of pgx shared by pools and transactions, so every
// repository method works both standalone and inside executeInTransaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides the PostgreSQL implementation of all repository
// interfaces consumed by the generator, coordinator, and notifier.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// Compile-time verification that Store implements all repository interfaces.
var (
	_ generator.Repository   = (*Store)(nil)
	_ coordinator.Repository = (*Store)(nil)
	_ notifier.Repository    = (*Store)(nil)
)

// NewStore creates a store on an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// finalizeTx rolls back on error and commits on success. Panics are
// handled separately before this runs.
func finalizeTx(ctx context.Context, tx pgx.Tx, err *error) {
	if *err != nil {
		slog.ErrorContext(ctx, "transaction failed, rolling back", "error", *err)
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed",
				"original_error", *err,
				"rollback_error", rbErr)
			*err = fmt.Errorf("transaction failed: %w (rollback error: %v)", *err, rbErr)
		}
		return
	}
	*err = tx.Commit(ctx)
	if *err != nil {
		slog.ErrorContext(ctx, "transaction commit failed", "error", *err)
	}
}

// executeInTransaction runs fn against a transaction-scoped store with
// logging and panic recovery.
func (s *Store) executeInTransaction(ctx context.Context, operationName string, fn func(txStore *Store) error) (err error) {
	start := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction",
			"operation", operationName,
			"error", err)
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "transaction panic, rolling back",
				"operation", operationName,
				"panic", p)
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed",
					"operation", operationName,
					"rollback_error", rbErr)
			}
			panic(p)
		}

		finalizeTx(ctx, tx, &err)
		if err == nil {
			slog.DebugContext(ctx, "transaction completed",
				"operation", operationName,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	err = fn(&Store{pool: s.pool, db: tx})
	return
}

// classify wraps retryable PostgreSQL failures as transient so callers
// apply the retry-once policy; everything else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// serialization_failure, deadlock_detected, connection exceptions
		case "40001", "40P01", "08000", "08003", "08006":
			return domain.Transient(err)
		}
		return err
	}

	if pgconn.SafeToRetry(err) {
		return domain.Transient(err)
	}
	return err
}
