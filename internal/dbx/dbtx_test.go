package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const (
	revokeSQL = `UPDATE refresh_tokens SET is_revoked = 1 WHERE token = ? AND is_revoked = 0`
	insertSQL = `INSERT INTO refresh_tokens (token, user_id) VALUES (?, ?)`
)

// newTokenDB returns a single-connection in-memory database with a
// refresh_tokens table seeded with the given tokens.
func newTokenDB(t *testing.T, tokens ...string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE refresh_tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		is_revoked INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	for _, tok := range tokens {
		_, err = db.Exec(insertSQL, tok, "u1")
		require.NoError(t, err)
	}
	return db
}

// state returns whether token is stored and whether it is revoked.
func state(t *testing.T, db *sql.DB, token string) (stored, revoked bool) {
	t.Helper()
	err := db.QueryRow(`SELECT is_revoked FROM refresh_tokens WHERE token = ?`, token).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false
	}
	require.NoError(t, err)
	return true, revoked
}

// rotate revokes old and stores next, failing like the repository does when
// the conditional revoke matches nothing.
func rotate(ctx context.Context, tx DBTX, old, next string) error {
	res, err := tx.ExecContext(ctx, revokeSQL, old)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errors.New("already revoked")
	}
	_, err = tx.ExecContext(ctx, insertSQL, next, "u1")
	return err
}

func TestWithTx_RotationCommits(t *testing.T) {
	db := newTokenDB(t, "old")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return rotate(ctx, tx, "old", "new")
	})
	require.NoError(t, err)

	_, revoked := state(t, db, "old")
	assert.True(t, revoked)
	stored, revoked := state(t, db, "new")
	assert.True(t, stored)
	assert.False(t, revoked)
}

func TestWithTx_FailedInsertUndoesRevoke(t *testing.T) {
	db := newTokenDB(t, "old", "dup")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return rotate(ctx, tx, "old", "dup")
	})
	require.Error(t, err)

	stored, revoked := state(t, db, "old")
	assert.True(t, stored)
	assert.False(t, revoked, "revoke must roll back with the failed insert")

	// The token can still be rotated afterwards.
	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return rotate(ctx, tx, "old", "new")
	})
	require.NoError(t, err)
}

func TestWithTx_RetriesAbortedTransaction(t *testing.T) {
	db := newTokenDB(t, "old")

	attempts := 0
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		attempts++
		if err := rotate(ctx, tx, "old", "new"); err != nil {
			return err
		}
		if attempts == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "second attempt must see the first one rolled back")

	_, revoked := state(t, db, "old")
	assert.True(t, revoked)
	stored, _ := state(t, db, "new")
	assert.True(t, stored)
}

func TestWithTx_GivesUpAfterMaxAttempts(t *testing.T) {
	db := newTokenDB(t, "old")

	attempts := 0
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		attempts++
		if err := rotate(ctx, tx, "old", "new"); err != nil {
			return err
		}
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.ErrorContains(t, err, "transaction aborted")
	assert.Equal(t, MaxAttempts, attempts)

	_, revoked := state(t, db, "old")
	assert.False(t, revoked)
}

func TestWithTx_OtherErrorsAreNotRetried(t *testing.T) {
	db := newTokenDB(t, "old")

	attempts := 0
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		attempts++
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithTx_StopsRetryingWhenContextEnds(t *testing.T) {
	db := newTokenDB(t, "old")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		attempts++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := newTokenDB(t, "old")

	attempts := 0
	require.Panics(t, func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			attempts++
			_, err := tx.ExecContext(ctx, revokeSQL, "old")
			require.NoError(t, err)
			panic("kaput")
		})
	})
	assert.Equal(t, 1, attempts)

	_, revoked := state(t, db, "old")
	assert.False(t, revoked)
}

func TestWithTx_BeginError(t *testing.T) {
	db := newTokenDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
