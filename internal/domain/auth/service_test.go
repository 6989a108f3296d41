package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	byEmail map[string]*User
	byID    map[string]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: make(map[string]*User), byID: make(map[string]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

type mockSessionRepo struct {
	byHash map[string]*Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{byHash: make(map[string]*Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *Session) error {
	m.byHash[s.TokenHash] = s
	return nil
}

func (m *mockSessionRepo) Get(_ context.Context, tokenHash string) (*Session, error) {
	s, ok := m.byHash[tokenHash]
	if !ok {
		return nil, ErrSessionInvalid
	}
	return s, nil
}

func (m *mockSessionRepo) Delete(_ context.Context, tokenHash string) error {
	delete(m.byHash, tokenHash)
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for hash, s := range m.byHash {
		if s.ExpiresAt.Before(before) {
			delete(m.byHash, hash)
			n++
		}
	}
	return n, nil
}

type mockAPIKeyRepo struct {
	byHash map[string]*APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, ErrUnauthorized
	}
	return info, nil
}

func newTestService() (*Service, *mockUserRepo, *mockSessionRepo) {
	users := newMockUserRepo()
	sessions := newMockSessionRepo()
	svc := NewService(users, sessions, &mockAPIKeyRepo{}, []byte("pepper"))
	return svc, users, sessions
}

func TestService_Register(t *testing.T) {
	t.Run("creates account with hashed password", func(t *testing.T) {
		svc, users, _ := newTestService()

		u, err := svc.Register(context.Background(), "Reader@Example.COM", "Reader", "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, "reader@example.com", u.Email)
		assert.NotEmpty(t, u.ID)
		assert.NotEqual(t, "s3cretpass", u.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cretpass")))

		stored, ok := users.byEmail["reader@example.com"]
		require.True(t, ok)
		assert.Same(t, u, stored)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Register(context.Background(), "a@example.com", "A", "password1")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), "A@example.com", "A again", "password2")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestService_Login(t *testing.T) {
	svc, _, sessions := newTestService()

	_, err := svc.Register(context.Background(), "reader@example.com", "Reader", "s3cretpass")
	require.NoError(t, err)

	t.Run("issues session token stored hashed", func(t *testing.T) {
		token, u, err := svc.Login(context.Background(), "reader@example.com", "s3cretpass")
		require.NoError(t, err)
		assert.Equal(t, "reader@example.com", u.Email)
		assert.Len(t, token, 64)

		// Only the SHA-256 of the token may be stored.
		sum := sha256.Sum256([]byte(token))
		sess, ok := sessions.byHash[hex.EncodeToString(sum[:])]
		require.True(t, ok)
		assert.Equal(t, u.ID, sess.UserID)
		assert.True(t, sess.ExpiresAt.After(time.Now()))
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "reader@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email rejected", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "ghost@example.com", "s3cretpass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_UserFromToken(t *testing.T) {
	t.Run("valid session resolves user", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Register(context.Background(), "reader@example.com", "Reader", "s3cretpass")
		require.NoError(t, err)
		token, _, err := svc.Login(context.Background(), "reader@example.com", "s3cretpass")
		require.NoError(t, err)

		u, err := svc.UserFromToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "reader@example.com", u.Email)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.UserFromToken(context.Background(), "")
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.UserFromToken(context.Background(), "deadbeef")
		assert.ErrorIs(t, err, ErrSessionInvalid)
	})

	t.Run("expired session rejected and deleted", func(t *testing.T) {
		svc, _, sessions := newTestService()
		_, err := svc.Register(context.Background(), "reader@example.com", "Reader", "s3cretpass")
		require.NoError(t, err)
		token, _, err := svc.Login(context.Background(), "reader@example.com", "s3cretpass")
		require.NoError(t, err)

		// Move the clock past the session TTL.
		svc.now = func() time.Time { return time.Now().Add(SessionTTL + time.Hour) }

		_, err = svc.UserFromToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrSessionInvalid)
		assert.Empty(t, sessions.byHash)
	})
}

func TestService_Logout(t *testing.T) {
	svc, _, sessions := newTestService()
	_, err := svc.Register(context.Background(), "reader@example.com", "Reader", "s3cretpass")
	require.NoError(t, err)
	token, _, err := svc.Login(context.Background(), "reader@example.com", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token))
	assert.Empty(t, sessions.byHash)

	// Logging out again is not an error.
	assert.NoError(t, svc.Logout(context.Background(), token))
}

func TestService_VerifyAPIKey(t *testing.T) {
	pepper := []byte("pepper")
	key := "admin-key-123"

	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	apikeys := &mockAPIKeyRepo{byHash: map[string]*APIKeyInfo{
		keyHash: {ID: "default", KeyHash: keyHash, Name: "Default", Scopes: []string{"admin"}},
	}}
	svc := NewService(newMockUserRepo(), newMockSessionRepo(), apikeys, pepper)

	t.Run("known key verified", func(t *testing.T) {
		info, err := svc.VerifyAPIKey(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, "default", info.ID)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := svc.VerifyAPIKey(context.Background(), "wrong-key")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}
