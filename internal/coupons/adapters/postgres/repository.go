package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolationCode = "23505"

const selectColumns = `
	code, description, discount_type, discount_value::text, minimum_purchase_cents,
	start_date, expiry_date, usage_limit, usage_count, is_active, applies_to,
	applicable_categories, applicable_products, created_at, updated_at
`

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, coupon domain.Coupon) error {
	query := `
		INSERT INTO coupons (
			code, description, discount_type, discount_value, minimum_purchase_cents,
			start_date, expiry_date, usage_limit, usage_count, is_active, applies_to,
			applicable_categories, applicable_products, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.pool.Exec(ctx, query,
		coupon.Code,
		coupon.Description,
		coupon.DiscountType,
		coupon.DiscountValue.String(),
		coupon.MinimumPurchaseCents,
		coupon.StartDate,
		coupon.ExpiryDate,
		coupon.UsageLimit,
		coupon.UsageCount,
		coupon.IsActive,
		coupon.AppliesTo,
		nonNil(coupon.ApplicableCategories),
		nonNil(coupon.ApplicableProducts),
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return ports.ErrCodeTaken
		}
		return fmt.Errorf("insert coupon: %w", err)
	}

	return nil
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + selectColumns + ` FROM coupons WHERE code = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select coupon: %w", err)
	}

	return coupon, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Coupon, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `SELECT ` + selectColumns + `
		FROM coupons
		WHERE ($1::boolean IS NULL OR is_active = $1)
		ORDER BY code
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, filter.Active, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	defer rows.Close()

	coupons := []domain.Coupon{}
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *coupon)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coupons: %w", err)
	}

	return coupons, nil
}

// Update rewrites the editable fields. usage_count and created_at are left alone.
func (r *Repository) Update(ctx context.Context, coupon domain.Coupon) error {
	query := `
		UPDATE coupons
		SET description = $2,
		    discount_type = $3,
		    discount_value = $4::text::numeric,
		    minimum_purchase_cents = $5,
		    start_date = $6,
		    expiry_date = $7,
		    usage_limit = $8,
		    is_active = $9,
		    applies_to = $10,
		    applicable_categories = $11,
		    applicable_products = $12,
		    updated_at = $13
		WHERE code = $1
	`

	result, err := r.pool.Exec(ctx, query,
		coupon.Code,
		coupon.Description,
		coupon.DiscountType,
		coupon.DiscountValue.String(),
		coupon.MinimumPurchaseCents,
		coupon.StartDate,
		coupon.ExpiryDate,
		coupon.UsageLimit,
		coupon.IsActive,
		coupon.AppliesTo,
		nonNil(coupon.ApplicableCategories),
		nonNil(coupon.ApplicableProducts),
		coupon.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, code string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *Repository) Redeem(ctx context.Context, code string, at time.Time) error {
	return Redeem(ctx, r.pool, code, at)
}

func (r *Repository) Release(ctx context.Context, code string) error {
	query := `
		UPDATE coupons
		SET usage_count = usage_count - 1, updated_at = $2
		WHERE code = $1 AND usage_count > 0
	`

	if _, err := r.pool.Exec(ctx, query, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}

	return nil
}

// Redeem runs the guarded increment on q, which may be a pool or an open
// transaction. The guard lives in the WHERE clause so concurrent callers
// cannot both take the last slot, and a coupon deactivated or expired after
// evaluation is not consumed.
func Redeem(ctx context.Context, q Querier, code string, at time.Time) error {
	query := `
		UPDATE coupons
		SET usage_count = usage_count + 1, updated_at = $2
		WHERE code = $1
		  AND is_active
		  AND start_date <= $3 AND expiry_date >= $3
		  AND (usage_limit = 0 OR usage_count < usage_limit)
	`

	result, err := q.Exec(ctx, query, code, time.Now().UTC(), at)
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}

	if result.RowsAffected() == 1 {
		return nil
	}

	coupon, err := scanCoupon(q.QueryRow(ctx, `SELECT `+selectColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrNotFound
		}
		return fmt.Errorf("check coupon: %w", err)
	}

	return ports.RedeemError(coupon.Redeemable(at))
}

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var (
		coupon        domain.Coupon
		discountValue string
	)

	err := row.Scan(
		&coupon.Code,
		&coupon.Description,
		&coupon.DiscountType,
		&discountValue,
		&coupon.MinimumPurchaseCents,
		&coupon.StartDate,
		&coupon.ExpiryDate,
		&coupon.UsageLimit,
		&coupon.UsageCount,
		&coupon.IsActive,
		&coupon.AppliesTo,
		&coupon.ApplicableCategories,
		&coupon.ApplicableProducts,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	coupon.DiscountValue, err = decimal.NewFromString(discountValue)
	if err != nil {
		return nil, fmt.Errorf("parse discount_value: %w", err)
	}

	coupon.StartDate = coupon.StartDate.UTC()
	coupon.ExpiryDate = coupon.ExpiryDate.UTC()

	return &coupon, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
