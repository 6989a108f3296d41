// Package payment abstracts the payment-gateway integration. The order
// service only sees the Provider interface; the concrete providers decide
// whether an order starts out paid (cash on delivery) or pending gateway
// confirmation.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method identifies how the customer pays.
type Method string

const (
	MethodCOD  Method = "cod"
	MethodCard Method = "card"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	return m == MethodCOD || m == MethodCard
}

// Status is the payment lifecycle state carried on an order.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// ErrUnsupportedMethod is returned when no provider handles the requested
// payment method.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Intent is the provider's answer to an initiated payment.
type Intent struct {
	// Reference is the provider-side identifier used to correlate webhook
	// confirmations with orders. Empty for methods settled immediately.
	Reference string
	// RedirectURL sends the customer to the gateway's hosted page, when the
	// provider uses one.
	RedirectURL string
	Status      Status
}

// Provider initiates a payment for an order total.
type Provider interface {
	Method() Method
	Initiate(ctx context.Context, orderID string, amount decimal.Decimal) (*Intent, error)
}

// Router dispatches to the provider registered for each method.
type Router struct {
	providers map[Method]Provider
}

// NewRouter builds a Router over the given providers.
func NewRouter(providers ...Provider) *Router {
	m := make(map[Method]Provider, len(providers))
	for _, p := range providers {
		m[p.Method()] = p
	}
	return &Router{providers: m}
}

// Initiate delegates to the provider for the method.
func (r *Router) Initiate(ctx context.Context, method Method, orderID string, amount decimal.Decimal) (*Intent, error) {
	p, ok := r.providers[method]
	if !ok {
		return nil, ErrUnsupportedMethod
	}
	return p.Initiate(ctx, orderID, amount)
}

// CODProvider settles immediately: cash is collected on delivery, so the
// order can move straight to processing.
type CODProvider struct{}

func (CODProvider) Method() Method { return MethodCOD }

func (CODProvider) Initiate(_ context.Context, _ string, _ decimal.Decimal) (*Intent, error) {
	return &Intent{Status: StatusPaid}, nil
}
