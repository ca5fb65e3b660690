package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

func sqlState(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil, false
	}
	return pgErr, true
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation. When constraint is non-empty, the violated constraint name
// must match as well.
func IsUniqueViolation(err error, constraint string) bool {
	pgErr, ok := sqlState(err)
	if !ok || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsRetryable reports whether err means the server aborted the transaction
// and running it again from the start may succeed.
func IsRetryable(err error) bool {
	pgErr, ok := sqlState(err)
	if !ok {
		return false
	}
	return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
}
