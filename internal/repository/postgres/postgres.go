package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.GemstoneRepository = (*Repository)(nil)
	_ repository.Store              = (*Repository)(nil)
)

const (
	userColumns     = `id, email, password_hash, token, created_at, updated_at`
	gemstoneColumns = `id, title, body, owner_id, created_at, updated_at`
)

// Ping checks the pool.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pooled connections.
func (r *Repository) Close() {
	r.pool.Close()
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, nilIfEmpty(user.Token), user.CreatedAt, user.UpdatedAt)
	return translate(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByToken resolves a bearer token to its user.
func (r *Repository) GetUserByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE token = $1`
	return scanUser(r.pool.QueryRow(ctx, query, token))
}

// UpdateUserToken replaces the stored token.
func (r *Repository) UpdateUserToken(ctx context.Context, userID, token string) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	const query = `UPDATE users SET token = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, nilIfEmpty(token))
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateUserPassword replaces the stored password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, userID string, hash []byte) error {
	if !validID(userID) {
		return repository.ErrNotFound
	}
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateGemstone inserts a gemstone.
func (r *Repository) CreateGemstone(ctx context.Context, gem *domain.Gemstone) error {
	const query = `INSERT INTO gemstones (` + gemstoneColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, gem.ID, gem.Title, gem.Text, gem.Owner, gem.CreatedAt, gem.UpdatedAt)
	return translate(err)
}

// GetGemstoneByID returns a gemstone by identifier.
func (r *Repository) GetGemstoneByID(ctx context.Context, id string) (*domain.Gemstone, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT ` + gemstoneColumns + ` FROM gemstones WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var gem domain.Gemstone
	if err := row.Scan(&gem.ID, &gem.Title, &gem.Text, &gem.Owner, &gem.CreatedAt, &gem.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &gem, nil
}

// ListGemstones returns every gemstone in insertion order.
func (r *Repository) ListGemstones(ctx context.Context) ([]domain.Gemstone, error) {
	const query = `SELECT ` + gemstoneColumns + ` FROM gemstones ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	gems := make([]domain.Gemstone, 0)
	for rows.Next() {
		var gem domain.Gemstone
		if err := rows.Scan(&gem.ID, &gem.Title, &gem.Text, &gem.Owner, &gem.CreatedAt, &gem.UpdatedAt); err != nil {
			return nil, err
		}
		gems = append(gems, gem)
	}
	return gems, rows.Err()
}

// UpdateGemstone writes title, text and updated_at.
func (r *Repository) UpdateGemstone(ctx context.Context, gem *domain.Gemstone) error {
	if !validID(gem.ID) {
		return repository.ErrNotFound
	}
	const query = `UPDATE gemstones SET title = $2, body = $3, updated_at = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, gem.ID, gem.Title, gem.Text, gem.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteGemstone removes a gemstone.
func (r *Repository) DeleteGemstone(ctx context.Context, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	const query = `DELETE FROM gemstones WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		token *string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &token, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if token != nil {
		u.Token = *token
	}
	return &u, nil
}

// validID reports whether id can match a uuid column. Anything else cannot
// exist and would make Postgres reject the query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return repository.ErrConflict
	}
	return err
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
