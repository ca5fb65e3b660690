package repomanager

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps all state in process. The db handles are
// ignored. Writes made through the context handed out by WithTx are recorded
// in an undo journal that is replayed when fn fails, so a rotation whose
// insert fails gets its revoked token back.
type MemoryRepositoryManager struct {
	users  *users.MemoryRepository
	tokens *refreshtokens.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:  users.NewMemoryRepository(),
		tokens: refreshtokens.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) DB() dbx.DBTX { return nil }

// WithTx runs fn with a journaling context. A nested call joins the outer
// journal. Rollback happens on error and on panic; panics are rethrown.
func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	if journalFrom(ctx) != nil {
		return fn(ctx, nil)
	}

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
		if err != nil {
			j.rollback()
		}
	}()

	return fn(withJournal(ctx, j), nil)
}

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return journaledUsers{m.users}
}

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return journaledTokens{m.tokens}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }
