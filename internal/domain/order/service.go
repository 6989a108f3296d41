package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hardback/bookstore/internal/domain/cart"
	"github.com/hardback/bookstore/internal/domain/catalog"
	"github.com/hardback/bookstore/internal/domain/coupon"
	"github.com/hardback/bookstore/internal/domain/pricing"
	"github.com/hardback/bookstore/internal/events"
	"github.com/hardback/bookstore/internal/payment"
)

// ErrEmptyCart is returned when checking out a cart with no items.
var ErrEmptyCart = errors.New("cart is empty")

// CheckoutRequest holds the input for placing an order from a cart.
type CheckoutRequest struct {
	CouponCode    string
	PaymentMethod payment.Method
}

// CheckoutResult is the placed order plus the gateway redirect, when the
// payment method uses a hosted page.
type CheckoutResult struct {
	Order       *Order
	RedirectURL string
}

// QuoteResult carries the priced cart plus any coupon rejection. The quote
// falls back to subtotal-only when the coupon is rejected, so display
// surfaces can render the totals and the specific error side by side.
type QuoteResult struct {
	Quote     pricing.Quote
	CouponErr error
}

// Service encapsulates checkout and order lifecycle logic.
type Service struct {
	carts     cart.Repository
	books     catalog.Repository
	coupons   coupon.Validator
	orders    Repository
	payments  *payment.Router
	publisher events.Publisher
	lg        *zap.Logger
	now       func() time.Time

	tracer       trace.Tracer
	ordersPlaced metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	books catalog.Repository,
	coupons coupon.Validator,
	orders Repository,
	payments *payment.Router,
	publisher events.Publisher,
	lg *zap.Logger,
) *Service {
	meter := otel.Meter("bookstore.order")
	ordersPlaced, _ := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders committed through checkout."),
	)
	return &Service{
		carts:        carts,
		books:        books,
		coupons:      coupons,
		orders:       orders,
		payments:     payments,
		publisher:    publisher,
		lg:           lg,
		now:          time.Now,
		tracer:       otel.Tracer("bookstore.order"),
		ordersPlaced: ordersPlaced,
	}
}

// snapshot batch-fetches the books referenced by the lines into a map.
func (s *Service) snapshot(ctx context.Context, lines []pricing.Line) (map[string]catalog.Book, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.BookID]; ok {
			continue
		}
		seen[l.BookID] = struct{}{}
		ids = append(ids, l.BookID)
	}

	fetched, err := s.books.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get books")
	}

	books := make(map[string]catalog.Book, len(fetched))
	for _, b := range fetched {
		books[b.ID] = b
	}
	for _, id := range ids {
		if _, ok := books[id]; !ok {
			return nil, &pricing.BookNotPricedError{BookID: id}
		}
	}
	return books, nil
}

// Quote prices the user's cart with an optional coupon code. Stock is not
// enforced here: display time shows the computed total regardless, to
// avoid blocking browsing. A rejected coupon does not fail the quote; the
// rejection is reported in the result so the caller renders both.
func (s *Service) Quote(ctx context.Context, userID, couponCode string) (*QuoteResult, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	lines := c.Lines()
	if len(lines) == 0 {
		return &QuoteResult{Quote: pricing.Quote{
			Subtotal: decimal.Zero,
			Discount: decimal.Zero,
			Total:    decimal.Zero,
		}}, nil
	}

	books, err := s.snapshot(ctx, lines)
	if err != nil {
		return nil, err
	}

	subtotal, err := pricing.Subtotal(lines, books)
	if err != nil {
		return nil, err
	}

	var (
		rule      *coupon.Rule
		couponErr error
	)
	if couponCode != "" {
		rule, couponErr = s.coupons.Validate(ctx, couponCode, subtotal)
		if couponErr != nil && !isCouponRejection(couponErr) {
			return nil, errors.Wrap(couponErr, "validate coupon")
		}
	}

	q, err := pricing.BuildQuote(lines, books, rule)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{Quote: q, CouponErr: couponErr}, nil
}

// Checkout prices the cart, enforces stock, initiates payment, and commits
// the order atomically. The coupon is validated here (pure) and its usage
// counter is incremented inside the same transaction that writes the
// order, so concurrent checkouts cannot push used_count past the limit.
func (s *Service) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "Checkout", trace.WithAttributes(
		attribute.String("payment.method", string(req.PaymentMethod)),
	))
	defer span.End()

	if !req.PaymentMethod.Valid() {
		return nil, payment.ErrUnsupportedMethod
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	lines := c.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	books, err := s.snapshot(ctx, lines)
	if err != nil {
		return nil, err
	}

	// Checkout-time stock enforcement, per line.
	for _, l := range lines {
		if err := pricing.CheckStock(l, books[l.BookID]); err != nil {
			return nil, err
		}
	}

	subtotal, err := pricing.Subtotal(lines, books)
	if err != nil {
		return nil, err
	}

	var rule *coupon.Rule
	if req.CouponCode != "" {
		rule, err = s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
	}

	quote, err := pricing.BuildQuote(lines, books, rule)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Items:         buildItems(lines, books),
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		Total:         quote.Total,
		CouponCode:    quote.CouponCode,
		PaymentMethod: req.PaymentMethod,
		Status:        StatusPending,
		CreatedAt:     s.now(),
	}

	intent, err := s.payments.Initiate(ctx, req.PaymentMethod, o.ID, o.Total)
	if err != nil {
		return nil, errors.Wrap(err, "initiate payment")
	}
	o.PaymentStatus = intent.Status
	o.PaymentRef = intent.Reference
	if intent.Status == payment.StatusPaid {
		// COD is accepted immediately; the order skips the pending state.
		o.Status = StatusProcessing
	}

	params := &CommitParams{
		Order:           o,
		StockDecrements: stockDecrements(lines),
		CouponCode:      quote.CouponCode,
		LibraryBookIDs:  ebookIDs(lines),
		ClearCartUserID: userID,
	}
	if err := s.orders.Commit(ctx, params); err != nil {
		return nil, errors.Wrap(err, "commit order")
	}

	span.SetAttributes(attribute.String("order.id", o.ID))
	s.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment.method", string(req.PaymentMethod)),
	))

	s.publish(ctx, events.OrderEvent{
		Type:       "order.placed",
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		Total:      o.Total.StringFixed(2),
		CouponCode: o.CouponCode,
		OccurredAt: o.CreatedAt,
	})

	return &CheckoutResult{Order: o, RedirectURL: intent.RedirectURL}, nil
}

// GetForUser returns the order only when it belongs to the user.
func (s *Service) GetForUser(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		// Ownership violations are indistinguishable from missing orders.
		return nil, ErrNotFound
	}
	return o, nil
}

// ListForUser returns the user's order history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Library returns the user's e-book library.
func (s *Service) Library(ctx context.Context, userID string) ([]catalog.Book, error) {
	ids, err := s.orders.Library(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get library")
	}
	if len(ids) == 0 {
		return []catalog.Book{}, nil
	}
	books, err := s.books.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get library books")
	}
	return books, nil
}

// List returns orders for the back office, optionally filtered by status.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	return s.orders.List(ctx, f)
}

// Sales aggregates the daily sales series since the given time.
func (s *Service) Sales(ctx context.Context, since time.Time) ([]SalesBucket, error) {
	return s.orders.SalesByDay(ctx, since)
}

// UpdateStatus performs an admin- or payment-driven lifecycle transition.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, o.Status, next, nil); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = next

	s.publish(ctx, events.OrderEvent{
		Type:       "order.status_changed",
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(next),
		OccurredAt: s.now(),
	})
	return o, nil
}

// ConfirmPayment handles a gateway webhook: the referenced order is marked
// paid and moves PENDING → PROCESSING.
func (s *Service) ConfirmPayment(ctx context.Context, paymentRef string) (*Order, error) {
	o, err := s.orders.GetByPaymentRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(StatusProcessing) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusProcessing}
	}

	paid := payment.StatusPaid
	if err := s.orders.UpdateStatus(ctx, o.ID, o.Status, StatusProcessing, &paid); err != nil {
		return nil, errors.Wrap(err, "confirm payment")
	}
	o.Status = StatusProcessing
	o.PaymentStatus = paid

	s.publish(ctx, events.OrderEvent{
		Type:       "order.status_changed",
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(StatusProcessing),
		OccurredAt: s.now(),
	})
	return o, nil
}

// publish sends an event without failing the caller: the order is already
// committed, so a broker outage must not surface as a checkout error.
func (s *Service) publish(ctx context.Context, e events.OrderEvent) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.lg.Warn("publish order event failed",
			zap.String("order_id", e.OrderID),
			zap.String("type", e.Type),
			zap.Error(err),
		)
	}
}

func buildItems(lines []pricing.Line, books map[string]catalog.Book) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		unit := pricing.UnitPrice(books[l.BookID], l.Kind)
		items[i] = Item{
			BookID:    l.BookID,
			Quantity:  l.Quantity,
			Kind:      l.Kind,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(l.Quantity))),
		}
	}
	return items
}

func stockDecrements(lines []pricing.Line) []StockDecrement {
	var decs []StockDecrement
	for _, l := range lines {
		if l.Kind == pricing.ItemPhysical {
			decs = append(decs, StockDecrement{BookID: l.BookID, Quantity: l.Quantity})
		}
	}
	return decs
}

func ebookIDs(lines []pricing.Line) []string {
	var ids []string
	for _, l := range lines {
		if l.Kind == pricing.ItemEbook {
			ids = append(ids, l.BookID)
		}
	}
	return ids
}

// isCouponRejection reports whether err is one of the recoverable coupon
// validation kinds, as opposed to an infrastructure failure.
func isCouponRejection(err error) bool {
	return errors.Is(err, coupon.ErrNotFound) ||
		errors.Is(err, coupon.ErrInactive) ||
		errors.Is(err, coupon.ErrExpired) ||
		errors.Is(err, coupon.ErrExhausted) ||
		errors.Is(err, coupon.ErrMinimumOrderNotMet)
}
