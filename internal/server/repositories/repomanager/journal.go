package repomanager

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// journal collects compensating actions for writes made inside a memory
// transaction. They run newest first.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

type journalKey struct{}

func withJournal(ctx context.Context, j *journal) context.Context {
	return context.WithValue(ctx, journalKey{}, j)
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// record adds f to the journal carried by ctx. Outside WithTx it is a no-op.
func record(ctx context.Context, f func()) {
	j := journalFrom(ctx)
	if j == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, f)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	undo := j.undo
	j.undo = nil
	j.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

type journaledUsers struct {
	*users.MemoryRepository
}

func (r journaledUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	created, err := r.MemoryRepository.Create(ctx, user)
	if err == nil {
		id := created.ID
		record(ctx, func() { r.Remove(id) })
	}
	return created, err
}

func (r journaledUsers) UpdateByID(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	prev, _ := r.MemoryRepository.FindByID(ctx, id)
	updated, err := r.MemoryRepository.UpdateByID(ctx, id, upd)
	if err == nil && updated != nil && prev != nil {
		record(ctx, func() { r.Restore(prev) })
	}
	return updated, err
}

func (r journaledUsers) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	prev, _ := r.MemoryRepository.FindByID(ctx, id)
	ok, err := r.MemoryRepository.SetActive(ctx, id, active)
	if err == nil && ok && prev != nil {
		record(ctx, func() { r.Restore(prev) })
	}
	return ok, err
}

type journaledTokens struct {
	*refreshtokens.MemoryRepository
}

func (r journaledTokens) Create(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	err := r.MemoryRepository.Create(ctx, token, userID, expiresAt)
	if err == nil {
		record(ctx, func() { _, _ = r.MemoryRepository.Delete(context.Background(), token) })
	}
	return err
}

func (r journaledTokens) Revoke(ctx context.Context, token string) (bool, error) {
	prev, _ := r.MemoryRepository.Find(ctx, token)
	revoked, err := r.MemoryRepository.Revoke(ctx, token)
	if err == nil && revoked && prev != nil {
		record(ctx, func() { r.Restore(prev) })
	}
	return revoked, err
}

func (r journaledTokens) Delete(ctx context.Context, token string) (bool, error) {
	prev, _ := r.MemoryRepository.Find(ctx, token)
	deleted, err := r.MemoryRepository.Delete(ctx, token)
	if err == nil && deleted && prev != nil {
		record(ctx, func() { r.Restore(prev) })
	}
	return deleted, err
}

func (r journaledTokens) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	var prev []*models.RefreshToken
	if journalFrom(ctx) != nil {
		prev = r.ForUser(userID)
	}
	n, err := r.MemoryRepository.DeleteAllForUser(ctx, userID)
	if err == nil && n > 0 {
		record(ctx, func() {
			for _, rt := range prev {
				r.Restore(rt)
			}
		})
	}
	return n, err
}
