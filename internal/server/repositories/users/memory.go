package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is a process-local Repository. Every method is atomic
// with respect to the others.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byEmail    map[string]string
	byUsername map[string]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.Username = cloneString(u.Username)
	c.Name = cloneString(u.Name)
	c.Phone = cloneString(u.Phone)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.Conflict(MsgEmailInUse)
	}
	if user.Username != nil {
		if _, ok := r.byUsername[*user.Username]; ok {
			return nil, common.Conflict(MsgUsernameTaken)
		}
	}

	u := copyUser(user)
	u.ID = uuid.NewString()
	u.IsActive = true
	u.CreatedAt = r.now().UTC()
	u.UpdatedAt = u.CreatedAt

	r.byID[u.ID] = u
	r.byEmail[u.Email] = u.ID
	if u.Username != nil {
		r.byUsername[*u.Username] = u.ID
	}
	return copyUser(u), nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *MemoryRepository) findByIndex(index map[string]string, key string) *models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return nil
	}
	return copyUser(r.byID[id])
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.findByIndex(r.byEmail, email), nil
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.findByIndex(r.byUsername, username), nil
}

func (r *MemoryRepository) UpdateByID(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}

	if upd.Username != nil {
		if owner, taken := r.byUsername[*upd.Username]; taken && owner != id {
			return nil, common.Conflict(MsgUsernameTaken)
		}
		if u.Username != nil {
			delete(r.byUsername, *u.Username)
		}
		u.Username = cloneString(upd.Username)
		r.byUsername[*u.Username] = id
	}
	if upd.Name != nil {
		u.Name = cloneString(upd.Name)
	}
	if upd.Phone != nil {
		u.Phone = cloneString(upd.Phone)
	}
	u.UpdatedAt = r.now().UTC()

	return copyUser(u), nil
}

func (r *MemoryRepository) SetActive(_ context.Context, id string, active bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	u.IsActive = active
	u.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *MemoryRepository) EmailExists(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUsername[username]
	return ok, nil
}

// Restore stores u under its ID as is, replacing any current record.
func (r *MemoryRepository) Restore(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unindex(u.ID)
	c := copyUser(u)
	r.byID[c.ID] = c
	r.byEmail[c.Email] = c.ID
	if c.Username != nil {
		r.byUsername[*c.Username] = c.ID
	}
}

// Remove drops the user with id together with its index entries.
func (r *MemoryRepository) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unindex(id)
}

func (r *MemoryRepository) unindex(id string) {
	u, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byEmail, u.Email)
	if u.Username != nil {
		delete(r.byUsername, *u.Username)
	}
}
