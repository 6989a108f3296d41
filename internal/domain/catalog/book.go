package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// Book represents a catalog item. A book may be sold as a physical copy,
// as an e-book, or both; the optional price fields are nil when the
// corresponding edition or sale price does not exist.
type Book struct {
	ID          string
	Title       string
	Author      string
	Description string
	Category    string
	CoverURL    string

	// Price is the physical base price and is always set.
	Price decimal.Decimal
	// DiscountedPrice is the physical sale price, nil when not on sale.
	DiscountedPrice *decimal.Decimal
	// EbookPrice is nil when no digital edition exists.
	EbookPrice *decimal.Decimal
	// EbookDiscounted is the digital sale price, nil when not on sale.
	EbookDiscounted *decimal.Decimal

	// Stock counts physical copies. E-books are not stock-limited.
	Stock int

	CreatedAt time.Time
}

// HasEbook reports whether a digital edition is available.
func (b Book) HasEbook() bool {
	return b.EbookPrice != nil || b.EbookDiscounted != nil
}

// Repository defines read and write operations for the book catalog.
type Repository interface {
	List(ctx context.Context, category string) ([]Book, error)
	Categories(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*Book, error)
	GetByIDs(ctx context.Context, ids []string) ([]Book, error)
	Upsert(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id string) error
}
