package refreshtokens

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// MemoryRepository is a process-local Repository guarded by one mutex, which
// makes Revoke and Delete the compare-and-set operations the contract asks for.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]*models.RefreshToken), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, token string, userID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; ok {
		return errors.New("refresh token already stored")
	}
	r.tokens[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: r.now().UTC(),
	}
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	c := *rt
	return &c, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[token]
	if !ok || rt.IsRevoked {
		return false, nil
	}
	rt.IsRevoked = true
	return true, nil
}

func (r *MemoryRepository) Delete(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; !ok {
		return false, nil
	}
	delete(r.tokens, token)
	return true, nil
}

func (r *MemoryRepository) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, rt := range r.tokens {
		if rt.UserID == userID {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) PurgeExpiredOrRevoked(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, rt := range r.tokens {
		if rt.IsRevoked || rt.Expired(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

// ForUser returns copies of every record owned by userID.
func (r *MemoryRepository) ForUser(userID string) []*models.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.RefreshToken
	for _, rt := range r.tokens {
		if rt.UserID == userID {
			c := *rt
			out = append(out, &c)
		}
	}
	return out
}

// Restore stores rt as is, replacing any record with the same token.
func (r *MemoryRepository) Restore(rt *models.RefreshToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *rt
	r.tokens[c.Token] = &c
}
