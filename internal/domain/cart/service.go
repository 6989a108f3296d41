package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/pricing"
)

// ErrNoEbookEdition is returned when adding an e-book line for a book that
// has no digital edition.
var ErrNoEbookEdition = errors.New("book has no e-book edition")

// Service encapsulates cart mutation rules. Display-time reads never fail
// on stock; only checkout enforces the stock invariant.
type Service struct {
	carts Repository
	books catalog.Repository
	now   func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, books catalog.Repository) *Service {
	return &Service{carts: carts, books: books, now: time.Now}
}

// Get returns the user's cart, empty when nothing has been added yet.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// SetItem adds a line or replaces its quantity. The referenced book must
// exist, the quantity must be at least 1, and e-book lines require a
// digital edition.
func (s *Service) SetItem(ctx context.Context, userID string, line pricing.Line) error {
	if line.Quantity < 1 {
		return &pricing.InvalidQuantityError{BookID: line.BookID, Quantity: line.Quantity}
	}
	if !line.Kind.Valid() {
		line.Kind = pricing.ItemPhysical
	}

	b, err := s.books.GetByID(ctx, line.BookID)
	if err != nil {
		return err
	}
	if line.Kind == pricing.ItemEbook && !b.HasEbook() {
		return ErrNoEbookEdition
	}

	item := Item{
		BookID:   line.BookID,
		Quantity: line.Quantity,
		Kind:     line.Kind,
		AddedAt:  s.now(),
	}
	if err := s.carts.SetItem(ctx, userID, item); err != nil {
		return errors.Wrap(err, "set cart item")
	}
	return nil
}

// RemoveItem deletes the (book, kind) line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, bookID string, kind pricing.ItemKind) error {
	if !kind.Valid() {
		kind = pricing.ItemPhysical
	}
	return s.carts.RemoveItem(ctx, userID, bookID, kind)
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}
