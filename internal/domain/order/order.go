package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/hardback/bookstore/internal/domain/pricing"
	"github.com/hardback/bookstore/internal/payment"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions encodes the admissible status changes. DELIVERED and
// CANCELLED are terminal. Cancellation is allowed at any point prior to
// shipment.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is admissible.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError indicates an inadmissible status change.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Item is one line of an order. Unlike a cart item it carries the resolved
// unit price: an order is the immutable snapshot created at checkout time.
type Item struct {
	BookID    string           `json:"book_id"`
	Quantity  int              `json:"quantity"`
	Kind      pricing.ItemKind `json:"kind"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	LineTotal decimal.Decimal  `json:"line_total"`
}

// Order is a completed checkout with pricing, payment, and lifecycle state.
type Order struct {
	ID            string
	UserID        string
	Items         []Item
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CouponCode    string
	PaymentMethod payment.Method
	PaymentStatus payment.Status
	PaymentRef    string
	Status        Status
	CreatedAt     time.Time
}

// StockDecrement is one physical line's stock consumption at checkout.
type StockDecrement struct {
	BookID   string
	Quantity int
}

// CommitParams is everything the checkout transaction writes atomically:
// the order row, conditional stock decrements, the guarded coupon usage
// increment, e-book library grants, and the cart clear. Executing these in
// one transaction closes the race where two concurrent checkouts both pass
// coupon validation before either increments the usage counter.
type CommitParams struct {
	Order           *Order
	StockDecrements []StockDecrement
	// CouponCode, when non-empty, must have its used_count incremented under
	// the usage-limit guard.
	CouponCode string
	// LibraryBookIDs are granted to the user's e-book library.
	LibraryBookIDs []string
	// ClearCartUserID empties that user's cart.
	ClearCartUserID string
}

// SalesBucket is one day of the admin sales analytics series.
type SalesBucket struct {
	Day      time.Time
	Orders   int
	Revenue  decimal.Decimal
	Discount decimal.Decimal
}

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Status Status
	Limit  int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Commit runs the checkout writes in a single transaction. It returns
	// *pricing.InsufficientStockError when a conditional stock decrement
	// matches no row, and coupon.ErrExhausted when the usage-limit guard
	// rejects the increment.
	Commit(ctx context.Context, p *CommitParams) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// UpdateStatus changes the lifecycle state, asserting the current state
	// to keep concurrent admin edits from clobbering each other. A non-nil
	// paymentStatus is written alongside.
	UpdateStatus(ctx context.Context, id string, from, to Status, paymentStatus *payment.Status) error
	// Library lists the book IDs in a user's e-book library.
	Library(ctx context.Context, userID string) ([]string, error)
	// SalesByDay aggregates non-cancelled orders per day since the given time.
	SalesByDay(ctx context.Context, since time.Time) ([]SalesBucket, error)
}

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")
