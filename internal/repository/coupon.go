package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hardback/bookstore/internal/domain/coupon"
)

const (
	couponColumns = `code, discount_percent, max_discount, min_order_value,
		usage_limit, used_count, valid_from, valid_until, active, category`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY code`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_percent, max_discount, min_order_value,
			usage_limit, used_count, valid_from, valid_until, active, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			discount_percent = EXCLUDED.discount_percent,
			max_discount = EXCLUDED.max_discount,
			min_order_value = EXCLUDED.min_order_value,
			usage_limit = EXCLUDED.usage_limit,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			active = EXCLUDED.active,
			category = EXCLUDED.category`

	deleteCouponSQL = `DELETE FROM coupons WHERE UPPER(code) = UPPER($1)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Inactive
// rules are returned so the validator can report the specific rejection.
// Returns coupon.ErrNotFound when no rule exists for the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// List returns every coupon rule, for the admin surface.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCouponRule)
}

// Upsert inserts or updates a rule. UsedCount is never reset on update.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, rule.DiscountPercent, rule.MaxDiscount, rule.MinOrderValue,
		rule.UsageLimit, rule.UsedCount, rule.ValidFrom, rule.ValidUntil, rule.Active, rule.Category,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

// Delete removes a rule by code (case-insensitive).
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var rule coupon.Rule
	err := row.Scan(
		&rule.Code, &rule.DiscountPercent, &rule.MaxDiscount, &rule.MinOrderValue,
		&rule.UsageLimit, &rule.UsedCount, &rule.ValidFrom, &rule.ValidUntil, &rule.Active, &rule.Category,
	)
	return rule, err
}
