package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/storage"
)

var (
	// ErrAuthenticationFailed covers both unknown email and wrong password.
	// The two are never distinguished to avoid leaking which emails exist.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUserNotFound is returned when a verified token references a user
	// that no longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registering an email that already has
	// an account, compared case-insensitively.
	ErrEmailTaken = errors.New("email already registered")
)

// UserService resolves credentials and session tokens to user identities.
// It is the sole gate every ledger operation passes through.
type UserService struct {
	storage *storage.SQLiteRepository
	tokens  *auth.TokenService
}

func NewUserService(storage *storage.SQLiteRepository, tokens *auth.TokenService) *UserService {
	return &UserService{storage: storage, tokens: tokens}
}

// Authenticate verifies an email/password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*core.User, error) {
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrAuthenticationFailed
	}
	return user, nil
}

// Login authenticates and issues a session token carrying the user's role.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *core.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(user.Email, []string{string(user.Role)})
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "user_id", user.ID)
	return token, user, nil
}

// Register creates a new account with a hashed password and the fixed USER role.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*core.User, error) {
	if _, err := s.storage.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up email: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.storage.CreateUser(ctx, name, email, hash, core.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CurrentUser resolves a session token back to the stored user record.
// An invalid or expired token yields auth.ErrTokenInvalid; a token whose
// subject was deleted after issuance yields ErrUserNotFound.
func (s *UserService) CurrentUser(ctx context.Context, token string) (*core.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.storage.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("look up token subject: %w", err)
	}
	return user, nil
}

// CurrentUserID resolves a session token to the owning user id.
func (s *UserService) CurrentUserID(ctx context.Context, token string) (int64, error) {
	user, err := s.CurrentUser(ctx, token)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// TokenLifetime exposes the configured token validity window so the transport
// cookie expiry can match it.
func (s *UserService) TokenLifetime() (lifetime int) {
	return int(s.tokens.Lifetime().Seconds())
}
