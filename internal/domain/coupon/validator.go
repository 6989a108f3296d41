package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator resolves a coupon code against a cart subtotal and returns the
// matching rule when the coupon is applicable.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Rule, error)
}

// RepoValidator implements Validator by looking up rules from a Repository
// and checking them with the pure Validate function. It never mutates the
// rule's usage counter.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the rule for the given code and checks it against the
// subtotal. On success the rule is returned unchanged.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Rule, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := Validate(rule, subtotal, v.now()); err != nil {
		return nil, err
	}
	return rule, nil
}
