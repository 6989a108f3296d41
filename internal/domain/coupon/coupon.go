package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validation errors. Each maps to a distinct user-facing message at the
// handler layer, so none of them may be collapsed into a generic failure.
var (
	// ErrNotFound is returned when no coupon matches the supplied code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon's kill switch is off.
	ErrInactive = errors.New("coupon is not active")
	// ErrExpired is returned when the current time is outside the coupon's
	// validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when the coupon has reached its usage limit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrMinimumOrderNotMet is returned when the cart subtotal is below the
	// coupon's minimum order value.
	ErrMinimumOrderNotMet = errors.New("minimum order value not met")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code            string
	DiscountPercent decimal.Decimal
	// MaxDiscount caps the absolute discount amount. Zero means no cap.
	MaxDiscount decimal.Decimal
	// MinOrderValue is the subtotal floor below which the coupon is rejected.
	MinOrderValue decimal.Decimal
	// UsageLimit bounds UsedCount. Zero means unlimited.
	UsageLimit int
	UsedCount  int
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool
	// Category optionally scopes the coupon to one catalog category. The
	// discount still applies to the whole subtotal; the field is carried for
	// admin surfaces only.
	Category string
}

// Validate checks a rule against a cart subtotal at the given instant.
// It is pure: incrementing UsedCount is a side effect reserved for order
// commit, so callers can re-validate immediately before the atomic
// increment without duplicating logic.
func Validate(r *Rule, subtotal decimal.Decimal, now time.Time) error {
	if r == nil {
		return ErrNotFound
	}
	if !r.Active {
		return ErrInactive
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrExpired
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return ErrExpired
	}
	if r.UsageLimit > 0 && r.UsedCount >= r.UsageLimit {
		return ErrExhausted
	}
	if subtotal.LessThan(r.MinOrderValue) {
		return ErrMinimumOrderNotMet
	}
	return nil
}

// Repository provides lookup and mutation of coupon rules.
// FindByCode matches codes case-insensitively and returns ErrNotFound when
// no active-or-inactive rule exists for the code.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	List(ctx context.Context) ([]Rule, error)
	Upsert(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, code string) error
}
