package catalog

import "context"

// WishlistRepository persists per-user wishlists. Adding a book that is
// already wishlisted is a no-op.
type WishlistRepository interface {
	List(ctx context.Context, userID string) ([]Book, error)
	Add(ctx context.Context, userID, bookID string) error
	Remove(ctx context.Context, userID, bookID string) error
}
