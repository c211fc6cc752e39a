// Package mysql implements the repositories on MySQL through database/sql.
package mysql

import (
	"context"
	"database/sql"
	"errors"

	driver "github.com/go-sql-driver/mysql"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
)

const errDuplicateEntry = 1062

const (
	userColumns     = `id, email, password_hash, token, created_at, updated_at`
	gemstoneColumns = `id, title, body, owner_id, created_at, updated_at`
)

// Repository implements repository.Store on MySQL.
type Repository struct {
	db *sql.DB
}

var _ repository.Store = (*Repository)(nil)

// New wraps an open database handle. The DSN must enable parseTime.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects using the mysql driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// DB exposes the underlying handle for migrations.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the database handle.
func (r *Repository) Close() {
	_ = r.db.Close()
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, nullString(user.Token), user.CreatedAt, user.UpdatedAt)
	return translate(err)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetUserByToken resolves a bearer token to its user.
func (r *Repository) GetUserByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE token = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

// UpdateUserToken replaces the stored token.
func (r *Repository) UpdateUserToken(ctx context.Context, userID, token string) error {
	const query = `UPDATE users SET token = ?, updated_at = UTC_TIMESTAMP(6) WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, nullString(token), userID)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

// UpdateUserPassword replaces the stored password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, userID string, hash []byte) error {
	const query = `UPDATE users SET password_hash = ?, updated_at = UTC_TIMESTAMP(6) WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, hash, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// CreateGemstone inserts a gemstone.
func (r *Repository) CreateGemstone(ctx context.Context, gem *domain.Gemstone) error {
	const query = `INSERT INTO gemstones (` + gemstoneColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, gem.ID, gem.Title, gem.Text, gem.Owner, gem.CreatedAt, gem.UpdatedAt)
	return translate(err)
}

// GetGemstoneByID returns a gemstone by identifier.
func (r *Repository) GetGemstoneByID(ctx context.Context, id string) (*domain.Gemstone, error) {
	const query = `SELECT ` + gemstoneColumns + ` FROM gemstones WHERE id = ?`
	var gem domain.Gemstone
	err := r.db.QueryRowContext(ctx, query, id).Scan(&gem.ID, &gem.Title, &gem.Text, &gem.Owner, &gem.CreatedAt, &gem.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &gem, nil
}

// ListGemstones returns every gemstone in insertion order.
func (r *Repository) ListGemstones(ctx context.Context) ([]domain.Gemstone, error) {
	const query = `SELECT ` + gemstoneColumns + ` FROM gemstones ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, query)
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
	const query = `UPDATE gemstones SET title = ?, body = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, gem.Title, gem.Text, gem.UpdatedAt, gem.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteGemstone removes a gemstone.
func (r *Repository) DeleteGemstone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gemstones WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u     domain.User
		token sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &token, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Token = token.String
	return &u, nil
}

// requireAffected maps a zero-row write to ErrNotFound. Open enables ClientFoundRows
// so an UPDATE matching a row without changing it still counts.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
		return repository.ErrConflict
	}
	return err
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
