// Package pricing computes cart line totals, subtotals, coupon discounts,
// and grand totals. It is a pure, synchronous computation: given identical
// inputs it returns identical outputs and performs no I/O. All amounts use
// decimal arithmetic so that displayed and persisted totals agree exactly.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/coupon"
)

// ItemKind selects which price fields of a book apply to a line item.
type ItemKind string

const (
	// ItemPhysical is a printed copy, priced from the physical fields and
	// limited by stock.
	ItemPhysical ItemKind = "physical"
	// ItemEbook is a digital copy, priced from the e-book fields and never
	// stock-limited.
	ItemEbook ItemKind = "ebook"
)

// Valid reports whether k is one of the known item kinds.
func (k ItemKind) Valid() bool {
	return k == ItemPhysical || k == ItemEbook
}

// Line is one book/quantity pairing within a cart or order.
type Line struct {
	BookID   string
	Quantity int
	Kind     ItemKind
}

// InvalidQuantityError indicates a line item has a quantity below 1.
type InvalidQuantityError struct {
	BookID   string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %d is invalid for book %s", e.Quantity, e.BookID)
}

// InsufficientStockError indicates a physical line exceeds available stock.
type InsufficientStockError struct {
	BookID    string
	Requested int
	Stock     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("book %s has %d in stock, %d requested", e.BookID, e.Stock, e.Requested)
}

// BookNotPricedError indicates a line references a book that was not in the
// supplied snapshot, or an e-book line for a book with no digital edition.
type BookNotPricedError struct {
	BookID string
}

func (e *BookNotPricedError) Error() string {
	return fmt.Sprintf("no price available for book %s", e.BookID)
}

var hundred = decimal.NewFromInt(100)

// UnitPrice resolves the effective unit price of a book for the given kind:
// e-book lines use ebookDiscounted, then ebookPrice, then the physical
// price; physical lines use discountedPrice, then price.
func UnitPrice(b catalog.Book, kind ItemKind) decimal.Decimal {
	if kind == ItemEbook {
		if b.EbookDiscounted != nil {
			return *b.EbookDiscounted
		}
		if b.EbookPrice != nil {
			return *b.EbookPrice
		}
		return b.Price
	}
	if b.DiscountedPrice != nil {
		return *b.DiscountedPrice
	}
	return b.Price
}

// LineTotal returns the resolved unit price multiplied by the quantity.
// Stock is deliberately not checked here: display surfaces show the total
// regardless, and checkout enforces stock separately via CheckStock.
func LineTotal(l Line, b catalog.Book) (decimal.Decimal, error) {
	if l.Quantity < 1 {
		return decimal.Zero, &InvalidQuantityError{BookID: l.BookID, Quantity: l.Quantity}
	}
	qty := decimal.NewFromInt(int64(l.Quantity))
	return UnitPrice(b, l.Kind).Mul(qty), nil
}

// CheckStock enforces the checkout-time stock invariant: a physical line
// must not exceed the book's stock. E-book lines always pass.
func CheckStock(l Line, b catalog.Book) error {
	if l.Kind == ItemEbook {
		return nil
	}
	if l.Quantity > b.Stock {
		return &InsufficientStockError{BookID: l.BookID, Requested: l.Quantity, Stock: b.Stock}
	}
	return nil
}

// Subtotal sums LineTotal over all lines. An empty slice yields exactly
// zero, not an error. A line whose book is missing from the snapshot
// yields a BookNotPricedError.
func Subtotal(lines []Line, books map[string]catalog.Book) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, l := range lines {
		b, ok := books[l.BookID]
		if !ok {
			return decimal.Zero, &BookNotPricedError{BookID: l.BookID}
		}
		lt, err := LineTotal(l, b)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(lt)
	}
	return sum, nil
}

// Discount computes the coupon discount for a subtotal: subtotal scaled by
// the rule's percentage, capped at MaxDiscount (when set) and at the
// subtotal itself. A nil rule yields exactly zero.
func Discount(r *coupon.Rule, subtotal decimal.Decimal) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d := subtotal.Mul(r.DiscountPercent).Div(hundred)
	if r.MaxDiscount.IsPositive() && d.GreaterThan(r.MaxDiscount) {
		d = r.MaxDiscount
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d.Round(2)
}

// GrandTotal is the subtotal minus the discount, floored at zero. Shipping
// is a fixed zero-cost addend.
func GrandTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}

// Quote is the priced view of a cart: the amounts displayed at cart,
// checkout, and order-creation time.
type Quote struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
}

// BuildQuote composes subtotal, discount, and grand total for a set of
// lines and an optional already-validated coupon rule.
func BuildQuote(lines []Line, books map[string]catalog.Book, rule *coupon.Rule) (Quote, error) {
	subtotal, err := Subtotal(lines, books)
	if err != nil {
		return Quote{}, err
	}
	discount := Discount(rule, subtotal)

	q := Quote{
		Subtotal: subtotal.Round(2),
		Discount: discount,
		Total:    GrandTotal(subtotal, discount),
	}
	if rule != nil {
		q.CouponCode = rule.Code
	}
	return q, nil
}
