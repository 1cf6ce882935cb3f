package repository

import (
	"context"
	"strings"
	"sync"

	"civicsync/models"
)

// MemoryUserRegistry is the in-process user registry used when no MongoDB
// is configured, and by tests.
type MemoryUserRegistry struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
}

func NewMemoryUserRegistry() *MemoryUserRegistry {
	return &MemoryUserRegistry{
		byID:    map[string]models.User{},
		byEmail: map[string]string{},
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *MemoryUserRegistry) FindByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRegistry) FindByID(ctx context.Context, id string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRegistry) Insert(ctx context.Context, user models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(user.Email)
	if _, taken := r.byEmail[key]; taken {
		return ErrDuplicate
	}
	if _, taken := r.byID[user.ID]; taken {
		return ErrDuplicate
	}
	r.byID[user.ID] = user
	r.byEmail[key] = user.ID
	return nil
}
