// Package repomanager wires the user and refresh token repositories to a
// storage backend and owns transactions and schema migrations.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound either to the backend's default
// handle (DB) or to a transaction handle passed to a WithTx callback.
type RepositoryManager interface {
	// DB returns the non-transactional handle.
	DB() dbx.DBTX

	// WithTx runs fn inside a transaction; repositories built from the
	// handed-in tx take part in it.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error

	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository

	RunMigrations(ctx context.Context) error
	Close() error
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// New opens the manager for the given storage driver.
func New(ctx context.Context, driver, dsn string) (RepositoryManager, error) {
	switch driver {
	case DriverPostgres, "":
		return OpenPostgres(ctx, dsn)
	case DriverMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
