package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardback/bookstore/internal/domain/coupon"
	"github.com/hardback/bookstore/internal/domain/order"
	"github.com/hardback/bookstore/internal/domain/pricing"
	"github.com/hardback/bookstore/internal/payment"
)

const (
	orderColumns = `id, user_id, items, subtotal, discount, total, coupon_code,
		payment_method, payment_status, payment_ref, status, created_at`

	insertOrderSQL = `INSERT INTO orders (id, user_id, items, subtotal, discount, total,
			coupon_code, payment_method, payment_status, payment_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByPaymentRefSQL = `SELECT ` + orderColumns + ` FROM orders WHERE payment_ref = $1 AND payment_ref <> ''`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`

	updateOrderStatusSQL = `UPDATE orders SET status = $3,
			payment_status = COALESCE($4, payment_status)
		WHERE id = $1 AND status = $2`

	// Conditional decrement: matches no row when stock is insufficient, so
	// the race between stock check and commit is resolved in the database.
	decrementStockSQL = `UPDATE books SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	// Guarded increment: matches no row once the usage limit is reached.
	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1) AND (usage_limit = 0 OR used_count < usage_limit)`

	grantLibrarySQL = `INSERT INTO library (user_id, book_id)
		VALUES ($1, $2) ON CONFLICT (user_id, book_id) DO NOTHING`

	listLibrarySQL = `SELECT book_id FROM library WHERE user_id = $1 ORDER BY acquired_at DESC`

	salesByDaySQL = `SELECT date_trunc('day', created_at) AS day,
			COUNT(*) AS orders, SUM(total) AS revenue, SUM(discount) AS discount
		FROM orders
		WHERE created_at >= $1 AND status <> 'CANCELLED'
		GROUP BY day ORDER BY day`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Commit runs all checkout writes in a single transaction: the order row,
// conditional stock decrements, the guarded coupon usage increment,
// library grants, and the cart clear. Any guard failure rolls back the
// whole checkout and surfaces as the matching domain error.
func (r *OrderRepository) Commit(ctx context.Context, p *order.CommitParams) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, dec := range p.StockDecrements {
		tag, err := tx.Exec(ctx, decrementStockSQL, dec.BookID, dec.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing stock for book %q: %w", dec.BookID, err)
		}
		if tag.RowsAffected() == 0 {
			return &pricing.InsufficientStockError{BookID: dec.BookID, Requested: dec.Quantity}
		}
	}

	if p.CouponCode != "" {
		tag, err := tx.Exec(ctx, incrementCouponUsesSQL, p.CouponCode)
		if err != nil {
			return fmt.Errorf("incrementing uses for coupon %q: %w", p.CouponCode, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrExhausted
		}
	}

	o := p.Order
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, itemsJSON, o.Subtotal, o.Discount, o.Total,
		o.CouponCode, string(o.PaymentMethod), string(o.PaymentStatus), o.PaymentRef,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, bookID := range p.LibraryBookIDs {
		if _, err := tx.Exec(ctx, grantLibrarySQL, o.UserID, bookID); err != nil {
			return fmt.Errorf("granting library book %q: %w", bookID, err)
		}
	}

	if p.ClearCartUserID != "" {
		if _, err := tx.Exec(ctx, clearCartSQL, p.ClearCartUserID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkout tx: %w", err)
	}
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByPaymentRef returns the order correlated with a gateway reference.
func (r *OrderRepository) GetByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByPaymentRefSQL, ref)
}

func (r *OrderRepository) getOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders for the admin surface, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus transitions an order, asserting the expected current state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, paymentStatus *payment.Status) error {
	var ps *string
	if paymentStatus != nil {
		s := string(*paymentStatus)
		ps = &s
	}

	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to), ps)
	if err != nil {
		return fmt.Errorf("updating status for order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the order vanished or a concurrent transition won.
		return order.ErrNotFound
	}
	return nil
}

// Library lists the book IDs in a user's e-book library.
func (r *OrderRepository) Library(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, listLibrarySQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing library for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
}

// SalesByDay aggregates non-cancelled orders per day since the given time.
func (r *OrderRepository) SalesByDay(ctx context.Context, since time.Time) ([]order.SalesBucket, error) {
	rows, err := r.pool.Query(ctx, salesByDaySQL, since)
	if err != nil {
		return nil, fmt.Errorf("aggregating sales: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.SalesBucket, error) {
		var b order.SalesBucket
		err := row.Scan(&b.Day, &b.Orders, &b.Revenue, &b.Discount)
		return b, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		itemsJSON     []byte
		method        string
		paymentStatus string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.Subtotal, &o.Discount, &o.Total, &o.CouponCode,
		&method, &paymentStatus, &o.PaymentRef, &status, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.PaymentMethod = payment.Method(method)
	o.PaymentStatus = payment.Status(paymentStatus)
	o.Status = order.Status(status)
	return o, nil
}
