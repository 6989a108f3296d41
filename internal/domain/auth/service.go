package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionTTL is how long a customer session stays valid.
const SessionTTL = 30 * 24 * time.Hour

// Service implements customer authentication (bcrypt passwords, opaque
// session tokens stored hashed) and admin API key verification
// (HMAC-SHA256 with a server-side pepper).
type Service struct {
	users    UserRepository
	sessions SessionRepository
	apikeys  APIKeyRepository
	pepper   []byte
	now      func() time.Time
}

// NewService creates an auth Service. The pepper is mixed into API key
// hashes so a leaked database alone cannot be used to forge keys.
func NewService(users UserRepository, sessions SessionRepository, apikeys APIKeyRepository, pepper []byte) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		apikeys:  apikeys,
		pepper:   pepper,
		now:      time.Now,
	}
}

// Register creates a customer account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, name, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return u, nil
}

// Login verifies the password and issues a new session. The returned token
// is the only copy; the store keeps its SHA-256 hash.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", nil, errors.Wrap(err, "generate session token")
	}

	sess := &Session{
		TokenHash: hashToken(token),
		UserID:    u.ID,
		ExpiresAt: s.now().Add(SessionTTL),
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, errors.Wrap(err, "create session")
	}
	return token, u, nil
}

// Logout invalidates the session for the given token. Unknown tokens are
// not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, hashToken(token))
}

// UserFromToken resolves a session token to its user, rejecting expired
// sessions.
func (s *Service) UserFromToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	sess, err := s.sessions.Get(ctx, hashToken(token))
	if err != nil {
		return nil, ErrSessionInvalid
	}
	if s.now().After(sess.ExpiresAt) {
		_ = s.sessions.Delete(ctx, sess.TokenHash)
		return nil, ErrSessionInvalid
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	return u, nil
}

// VerifyAPIKey authenticates an admin request by computing the
// HMAC-SHA256 of the provided key, looking it up, and performing a
// constant-time comparison to prevent timing attacks.
func (s *Service) VerifyAPIKey(ctx context.Context, key string) (*APIKeyInfo, error) {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)
	hexHash := hex.EncodeToString(hash)

	info, err := s.apikeys.FindByHash(ctx, hexHash)
	if err != nil {
		return nil, ErrUnauthorized
	}

	// Constant-time comparison guards against timing side-channels even
	// though the lookup already succeeded — the stored hash could differ
	// from what we computed if the repository returns a stale/wrong row.
	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return nil, ErrUnauthorized
	}
	return info, nil
}

// newToken returns a 32-byte random token, hex encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashToken returns the hex SHA-256 of a session token.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
