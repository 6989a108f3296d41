package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardback/bookstore/internal/domain/cart"
	"github.com/hardback/bookstore/internal/domain/pricing"
)

const (
	getCartItemsSQL = `SELECT book_id, quantity, kind, added_at
		FROM cart_items WHERE user_id = $1 ORDER BY added_at, book_id`

	setCartItemSQL = `INSERT INTO cart_items (user_id, book_id, kind, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, book_id, kind) DO UPDATE SET quantity = EXCLUDED.quantity`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND book_id = $2 AND kind = $3`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Each
// user's cart is the set of cart_items rows keyed by their user ID.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart; a user with no rows gets an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var (
			it   cart.Item
			kind string
		)
		err := row.Scan(&it.BookID, &it.Quantity, &kind, &it.AddedAt)
		it.Kind = pricing.ItemKind(kind)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning cart for user %q: %w", userID, err)
	}

	return &cart.Cart{UserID: userID, Items: items}, nil
}

// SetItem inserts or replaces the (book, kind) line.
func (r *CartRepository) SetItem(ctx context.Context, userID string, item cart.Item) error {
	_, err := r.pool.Exec(ctx, setCartItemSQL,
		userID, item.BookID, string(item.Kind), item.Quantity, item.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("setting cart item %q for user %q: %w", item.BookID, userID, err)
	}
	return nil
}

// RemoveItem deletes the (book, kind) line.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, bookID string, kind pricing.ItemKind) error {
	tag, err := r.pool.Exec(ctx, removeCartItemSQL, userID, bookID, string(kind))
	if err != nil {
		return fmt.Errorf("removing cart item %q for user %q: %w", bookID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// Clear empties the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}
