package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/hardback/bookstore/internal/domain/pricing"
)

// ErrItemNotFound is returned when removing or updating a line that is not
// in the cart.
var ErrItemNotFound = errors.New("cart item not found")

// Item is one line of a cart, keyed by (book, kind) so a physical copy and
// the e-book of the same title are distinct lines.
type Item struct {
	BookID   string
	Quantity int
	Kind     pricing.ItemKind
	AddedAt  time.Time
}

// Cart is the mutable, user-owned collection of items prior to checkout.
// Items have no independent lifecycle: they are created when added and
// destroyed when the cart is cleared, checked out, or the item removed.
type Cart struct {
	UserID string
	Items  []Item
}

// Lines converts the cart's items to pricing lines.
func (c *Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(c.Items))
	for i, it := range c.Items {
		lines[i] = pricing.Line{BookID: it.BookID, Quantity: it.Quantity, Kind: it.Kind}
	}
	return lines
}

// Repository defines persistence operations for carts. Each user owns
// exactly one cart, addressed by user ID.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	// SetItem inserts or replaces the (book, kind) line with the given quantity.
	SetItem(ctx context.Context, userID string, item Item) error
	RemoveItem(ctx context.Context, userID, bookID string, kind pricing.ItemKind) error
	Clear(ctx context.Context, userID string) error
}
