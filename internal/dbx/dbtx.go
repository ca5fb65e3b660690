// Package dbx holds the database plumbing shared by the PostgreSQL
// repositories: the DBTX handle they are built on, a transaction runner that
// retries aborted transactions, and SQLSTATE classification.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is what a repository needs from a connection. *sql.DB and *sql.Tx
// both satisfy it, so the same repository can run inside or outside WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MaxAttempts bounds how many times WithTx runs fn when the server aborts
// the transaction with a serialization failure or a deadlock.
const MaxAttempts = 3

// WithTx runs fn in a transaction opened with opts and commits when fn
// returns nil. Any error from fn or from commit rolls the attempt back. If
// that error is retryable (see IsRetryable) the whole of fn runs again in a
// fresh transaction, up to MaxAttempts times, so fn must not keep state
// across attempts beyond what it recomputes. A panic rolls back and is
// rethrown without a retry.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		err = runTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("transaction aborted %d times: %w", MaxAttempts, err)
}

func runTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
