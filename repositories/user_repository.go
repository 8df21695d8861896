package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/cppla/socialfeed/models"
)

// UserRepository is the identity store.
type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (models.User, error)
	GetAll(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	UpdatePassword(ctx context.Context, id int64, expectedHash, passwordHash string) (models.User, error)
}

// UserRepositoryInMemory keeps users in process memory. The zero value is not usable;
// call NewUserRepositoryInMemory.
type UserRepositoryInMemory struct {
	mu         sync.RWMutex
	nextID     int64
	items      []models.User
	byID       map[int64]int
	byUsername map[string]int64
}

// NewUserRepositoryInMemory creates an empty identity store.
func NewUserRepositoryInMemory() *UserRepositoryInMemory {
	return &UserRepositoryInMemory{
		nextID:     1,
		byID:       make(map[int64]int),
		byUsername: make(map[string]int64),
	}
}

// Create inserts a new user. The uniqueness check and the insert happen under one lock.
func (r *UserRepositoryInMemory) Create(_ context.Context, username, passwordHash string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[username]; ok {
		return models.User{}, fmt.Errorf("username %q already exists: %w", username, models.ErrConflict)
	}

	u := models.User{ID: r.nextID, Username: username, PasswordHash: passwordHash}
	r.nextID++
	r.byID[u.ID] = len(r.items)
	r.byUsername[username] = u.ID
	r.items = append(r.items, u)
	return u, nil
}

// GetAll returns every user in registration order.
func (r *UserRepositoryInMemory) GetAll(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *UserRepositoryInMemory) GetByID(_ context.Context, id int64) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return r.items[idx], nil
}

// GetByIDs returns the users matching ids. Unknown ids are skipped.
func (r *UserRepositoryInMemory) GetByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if idx, ok := r.byID[id]; ok {
			out = append(out, r.items[idx])
		}
	}
	return out, nil
}

func (r *UserRepositoryInMemory) GetByUsername(_ context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return models.User{}, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
	}
	return r.items[r.byID[id]], nil
}

// UpdatePassword replaces the stored hash only while it still equals expectedHash.
// A hash changed in the meantime yields models.ErrCredential.
func (r *UserRepositoryInMemory) UpdatePassword(_ context.Context, id int64, expectedHash, passwordHash string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	if r.items[idx].PasswordHash != expectedHash {
		return models.User{}, fmt.Errorf("user %d: password changed concurrently: %w", id, models.ErrCredential)
	}
	r.items[idx].PasswordHash = passwordHash
	return r.items[idx], nil
}

// Len reports the number of registered users.
func (r *UserRepositoryInMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
