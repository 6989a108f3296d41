package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardback/bookstore/internal/domain/catalog"
)

const (
	listWishlistSQL = `SELECT ` + bookColumns + ` FROM books
		JOIN wishlist w ON w.book_id = books.id
		WHERE w.user_id = $1 ORDER BY w.added_at DESC`

	addWishlistSQL = `INSERT INTO wishlist (user_id, book_id)
		VALUES ($1, $2) ON CONFLICT (user_id, book_id) DO NOTHING`

	removeWishlistSQL = `DELETE FROM wishlist WHERE user_id = $1 AND book_id = $2`
)

var _ catalog.WishlistRepository = (*WishlistRepository)(nil)

// WishlistRepository implements catalog.WishlistRepository backed by
// PostgreSQL.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// NewWishlistRepository returns a WishlistRepository that uses the given pool.
func NewWishlistRepository(pool *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{pool: pool}
}

// List returns the wishlisted books, most recently added first.
func (r *WishlistRepository) List(ctx context.Context, userID string) ([]catalog.Book, error) {
	rows, err := r.pool.Query(ctx, listWishlistSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// Add wishlists a book. Adding an already wishlisted book is a no-op.
func (r *WishlistRepository) Add(ctx context.Context, userID, bookID string) error {
	_, err := r.pool.Exec(ctx, addWishlistSQL, userID, bookID)
	if err != nil {
		return fmt.Errorf("adding wishlist book %q for user %q: %w", bookID, userID, err)
	}
	return nil
}

// Remove takes a book off the wishlist.
func (r *WishlistRepository) Remove(ctx context.Context, userID, bookID string) error {
	tag, err := r.pool.Exec(ctx, removeWishlistSQL, userID, bookID)
	if err != nil {
		return fmt.Errorf("removing wishlist book %q for user %q: %w", bookID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
