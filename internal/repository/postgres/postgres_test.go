package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
)

// getPool connects to TEST_DATABASE_URL, which must point at a migrated schema.
func getPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("postgres not available: %v", err)
	}
	return pool
}

func TestGemstoneLifecycle(t *testing.T) {
	pool := getPool(t)
	repo := New(pool)
	defer repo.Close()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	dupe := *user
	dupe.ID = uuid.NewString()
	if err := repo.CreateUser(ctx, &dupe); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	gem := &domain.Gemstone{ID: uuid.NewString(), Title: "Emerald", Text: "900", Owner: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateGemstone(ctx, gem); err != nil {
		t.Fatalf("create gemstone: %v", err)
	}
	gem.Title = "Beryl"
	gem.UpdatedAt = now.Add(time.Second)
	if err := repo.UpdateGemstone(ctx, gem); err != nil {
		t.Fatalf("update gemstone: %v", err)
	}
	stored, err := repo.GetGemstoneByID(ctx, gem.ID)
	if err != nil {
		t.Fatalf("get gemstone: %v", err)
	}
	if stored.Title != "Beryl" || stored.Text != "900" || stored.Owner != user.ID {
		t.Fatalf("unexpected gemstone: %+v", stored)
	}
	if err := repo.DeleteGemstone(ctx, gem.ID); err != nil {
		t.Fatalf("delete gemstone: %v", err)
	}
	if err := repo.DeleteGemstone(ctx, gem.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetGemstoneByID(ctx, "does-not-exist"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-uuid id, got %v", err)
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	// A nil pool proves the lookups are answered before any query is sent.
	repo := &Repository{}
	ctx := context.Background()

	if _, err := repo.GetGemstoneByID(ctx, "does-not-exist"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get gemstone: expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteGemstone(ctx, "42"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete gemstone: expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateGemstone(ctx, &domain.Gemstone{ID: "not-a-uuid", Title: "x", Text: "y"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update gemstone: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetUserByID(ctx, ""); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get user: expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateUserToken(ctx, "nope", "tok"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("update token: expected ErrNotFound, got %v", err)
	}
}
