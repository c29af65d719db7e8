package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/prato-delivery/internal/domain/coupon"
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

const findCouponSQL = `SELECT code, discount_type, value, min_items, description,
	valid_from, valid_until, max_uses, uses
	FROM coupons WHERE code = UPPER($1) AND active`

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	var rule coupon.Rule
	err := r.pool.QueryRow(ctx, findCouponSQL, code).Scan(
		&rule.Code, &rule.DiscountType, &rule.Value, &rule.MinItems, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &rule.MaxUses, &rule.Uses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &rule, nil
}

// IncrementUses bumps the usage counter for a coupon code.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE coupons SET uses = uses + 1 WHERE code = UPPER($1)`, code); err != nil {
		return errors.Wrapf(err, "increment uses of %q", code)
	}
	return nil
}

const upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_items, description, active)
	VALUES (UPPER($1), $2, $3, $4, $5, $6)
	ON CONFLICT (code) DO UPDATE SET
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		min_items = EXCLUDED.min_items,
		description = EXCLUDED.description,
		active = EXCLUDED.active`

// Upsert inserts or refreshes a coupon rule. Used by the bulk ingest CLI and
// the seeder.
func (r *CouponRepository) Upsert(ctx context.Context, rule coupon.Rule, active bool) error {
	if _, err := r.pool.Exec(ctx, upsertCouponSQL,
		rule.Code, rule.DiscountType, rule.Value, rule.MinItems, rule.Description, active,
	); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", rule.Code)
	}
	return nil
}
