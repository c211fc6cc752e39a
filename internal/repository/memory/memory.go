// Package memory provides an in-process Store used for tests and local development.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
)

// Repository keeps users and gemstones in maps guarded by a single mutex.
type Repository struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	gemstones map[string]domain.Gemstone
	order     []string
}

var _ repository.Store = (*Repository)(nil)

// New constructs an empty Repository.
func New() *Repository {
	return &Repository{
		users:     make(map[string]domain.User),
		gemstones: make(map[string]domain.Gemstone),
	}
}

// Ping always succeeds.
func (r *Repository) Ping(context.Context) error { return nil }

// Close is a no-op.
func (r *Repository) Close() {}

// CreateUser inserts a user, rejecting duplicate e-mails and tokens.
func (r *Repository) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return repository.ErrConflict
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrConflict
		}
		if user.Token != "" && existing.Token == user.Token {
			return repository.ErrConflict
		}
	}
	r.users[user.ID] = *user
	return nil
}

// GetUserByEmail fetches a user by e-mail, case-insensitively.
func (r *Repository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

// GetUserByToken resolves a token by exact match.
func (r *Repository) GetUserByToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Token == token {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// UpdateUserToken replaces the stored token.
func (r *Repository) UpdateUserToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if token != "" {
		for id, other := range r.users {
			if id != userID && other.Token == token {
				return repository.ErrConflict
			}
		}
	}
	user.Token = token
	r.users[userID] = user
	return nil
}

// UpdateUserPassword replaces the stored password hash.
func (r *Repository) UpdateUserPassword(_ context.Context, userID string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = append([]byte(nil), hash...)
	r.users[userID] = user
	return nil
}

// CreateGemstone inserts a gemstone.
func (r *Repository) CreateGemstone(_ context.Context, gem *domain.Gemstone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gemstones[gem.ID]; exists {
		return repository.ErrConflict
	}
	r.gemstones[gem.ID] = *gem
	r.order = append(r.order, gem.ID)
	return nil
}

// GetGemstoneByID retrieves a gemstone by identifier.
func (r *Repository) GetGemstoneByID(_ context.Context, id string) (*domain.Gemstone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gem, ok := r.gemstones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &gem, nil
}

// ListGemstones returns gemstones in insertion order.
func (r *Repository) ListGemstones(context.Context) ([]domain.Gemstone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Gemstone, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.gemstones[id])
	}
	return out, nil
}

// UpdateGemstone writes title, text and updated_at of an existing gemstone.
func (r *Repository) UpdateGemstone(_ context.Context, gem *domain.Gemstone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.gemstones[gem.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Title = gem.Title
	stored.Text = gem.Text
	stored.UpdatedAt = gem.UpdatedAt
	r.gemstones[gem.ID] = stored
	return nil
}

// DeleteGemstone removes a gemstone.
func (r *Repository) DeleteGemstone(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gemstones[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.gemstones, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
