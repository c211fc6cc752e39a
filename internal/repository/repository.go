package repository

import (
	"context"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
)

// UserRepository persists users and their auth tokens.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByToken(ctx context.Context, token string) (*domain.User, error)
	UpdateUserToken(ctx context.Context, userID, token string) error
	UpdateUserPassword(ctx context.Context, userID string, hash []byte) error
}

// GemstoneRepository persists gemstone records.
type GemstoneRepository interface {
	CreateGemstone(ctx context.Context, gem *domain.Gemstone) error
	GetGemstoneByID(ctx context.Context, id string) (*domain.Gemstone, error)
	// ListGemstones returns every record in insertion order.
	ListGemstones(ctx context.Context) ([]domain.Gemstone, error)
	// UpdateGemstone writes title, text and updated_at. Owner is never changed.
	UpdateGemstone(ctx context.Context, gem *domain.Gemstone) error
	DeleteGemstone(ctx context.Context, id string) error
}

// Store bundles the repositories a backend provides.
type Store interface {
	UserRepository
	GemstoneRepository
	Ping(ctx context.Context) error
	Close()
}
