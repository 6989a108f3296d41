package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on login failure. Whether the email
	// or the password was wrong is deliberately not revealed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionInvalid is returned for unknown or expired session tokens.
	ErrSessionInvalid = errors.New("session invalid or expired")
	// ErrUnauthorized is returned for unknown or inactive API keys.
	ErrUnauthorized = errors.New("unauthorized")
)

// User is a customer account. PasswordHash is a bcrypt hash and never
// leaves this package.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is a server-side customer session. Only the SHA-256 hash of the
// opaque token is stored.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// APIKeyInfo holds the identity and permission data for a validated admin
// API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// UserRepository persists customer accounts.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// SessionRepository persists customer sessions by token hash.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, tokenHash string) (*Session, error)
	Delete(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// APIKeyRepository provides lookup of active admin API keys by their
// HMAC-SHA256 hash.
type APIKeyRepository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
