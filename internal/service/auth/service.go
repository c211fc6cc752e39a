package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/melsimpson1023/project-2-gemstone/internal/domain"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
	"github.com/melsimpson1023/project-2-gemstone/pkg/crypto"
)

var (
	// ErrUnauthenticated is returned when a token is missing or unknown.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials is returned when an e-mail/password pair does not verify.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with a registered e-mail.
	ErrEmailTaken = errors.New("email already registered")
)

// tokenAttempts bounds retries when a freshly generated token collides.
const tokenAttempts = 3

var tooLong = fmt.Sprintf("is too long (maximum is %d bytes)", crypto.MaxPasswordBytes)

// Credentials carries sign-up and sign-in input.
type Credentials struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SignUp registers a new user. The user has no token until it signs in.
func (s Service) SignUp(ctx context.Context, creds Credentials) (*domain.User, error) {
	email := strings.TrimSpace(creds.Email)
	if email == "" {
		return nil, domain.Invalid("email", "is required")
	}
	if creds.Password == "" {
		return nil, domain.Invalid("password", "is required")
	}
	if creds.Password != creds.PasswordConfirmation {
		return nil, domain.Invalid("password_confirmation", "does not match password")
	}
	hash, err := crypto.HashPassword(creds.Password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return nil, domain.Invalid("password", tooLong)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// SignIn verifies credentials and issues a fresh token.
func (s Service) SignIn(ctx context.Context, creds Credentials) (*domain.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, creds.Password); err != nil {
		if !errors.Is(err, crypto.ErrPasswordMismatch) {
			s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}
	s.upgradeHash(ctx, user.ID, user.PasswordHash, creds.Password)
	token, err := s.rotateToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Token = token
	s.logger.Info("user signed in", "user_id", user.ID)
	return user, nil
}

// SignOut invalidates the user's current token by replacing it with an unpublished one.
func (s Service) SignOut(ctx context.Context, userID string) error {
	if _, err := s.rotateToken(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user signed out", "user_id", userID)
	return nil
}

// ChangePassword replaces the password after verifying the old one.
func (s Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return domain.Invalid("new", "is required")
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := crypto.ComparePassword(user.PasswordHash, oldPassword); err != nil {
		return domain.Invalid("old", "does not match current password")
	}
	hash, err := crypto.HashPassword(newPassword)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return domain.Invalid("new", tooLong)
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// upgradeHash re-hashes a verified password whose hash predates the current
// cost. Failures leave the old hash in place.
func (s Service) upgradeHash(ctx context.Context, userID string, hash []byte, password string) {
	if !crypto.NeedsRehash(hash) {
		return
	}
	fresh, err := crypto.HashPassword(password)
	if err == nil {
		err = s.users.UpdateUserPassword(ctx, userID, fresh)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password rehashed", "user_id", userID, "cost", crypto.PasswordCost)
}

// Authorize resolves a bearer token to its user by exact match.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetUserByToken(ctx, trimmed)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	return user, nil
}

func (s Service) rotateToken(ctx context.Context, userID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := crypto.NewToken()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		err = s.users.UpdateUserToken(ctx, userID, token)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("store token: %w", lastErr)
}
