package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardback/bookstore/internal/domain/auth"
)

const (
	userColumns = `id, email, name, password_hash, created_at`

	createUserSQL = `INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	createSessionSQL = `INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`

	getSessionSQL = `SELECT token_hash, user_id, expires_at, created_at
		FROM sessions WHERE token_hash = $1`

	deleteSessionSQL = `DELETE FROM sessions WHERE token_hash = $1`

	deleteExpiredSessionsSQL = `DELETE FROM sessions WHERE expires_at < $1`
)

const uniqueViolationCode = "23505"

var (
	_ auth.UserRepository    = (*UserRepository)(nil)
	_ auth.SessionRepository = (*SessionRepository)(nil)
)

// UserRepository implements auth.UserRepository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new account. A duplicate email maps to auth.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *auth.User) error {
	_, err := r.pool.Exec(ctx, createUserSQL, u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// GetByEmail looks up an account by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// GetByID looks up an account by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

func (r *UserRepository) getOne(ctx context.Context, sql string, arg any) (*auth.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.User, error) {
		var u auth.User
		err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// SessionRepository implements auth.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a session by its token hash.
func (r *SessionRepository) Create(ctx context.Context, s *auth.Session) error {
	_, err := r.pool.Exec(ctx, createSessionSQL, s.TokenHash, s.UserID, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// Get looks up a session by its token hash.
func (r *SessionRepository) Get(ctx context.Context, tokenHash string) (*auth.Session, error) {
	rows, err := r.pool.Query(ctx, getSessionSQL, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.Session, error) {
		var s auth.Session
		err := row.Scan(&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrSessionInvalid
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &s, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, deleteSessionSQL, tokenHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before the given time and
// reports how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredSessionsSQL, before)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
