package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	couponspg "github.com/dejobratic/storefront/internal/coupons/adapters/postgres"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolationCode = "23505"

const selectColumns = `
	o.id, o.order_number, o.customer_email, o.status, o.payment_status, o.items,
	o.subtotal_cents, o.discount_cents, o.tax_cents, o.shipping_cents, o.total_cents,
	o.coupon_code, o.tracking_number, o.shipping_carrier, o.estimated_delivery, o.notes,
	o.created_at, o.updated_at
`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the order and, when a coupon is attached, redeems it in the
// same transaction.
func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if order.CouponCode != "" {
		if err := couponspg.Redeem(ctx, tx, order.CouponCode, order.CreatedAt); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO orders (
			id, order_number, customer_email, status, payment_status, items,
			subtotal_cents, discount_cents, tax_cents, shipping_cents, total_cents,
			coupon_code, tracking_number, shipping_carrier, estimated_delivery, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		order.CustomerEmail,
		string(order.Status),
		string(order.PaymentStatus),
		items,
		order.SubtotalCents,
		order.DiscountCents,
		order.TaxCents,
		order.ShippingCents,
		order.TotalCents,
		nullIfEmpty(order.CouponCode),
		order.TrackingNumber,
		order.ShippingCarrier,
		order.EstimatedDelivery,
		order.Notes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return ports.ErrDuplicateOrderNumber
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + selectColumns + ` FROM orders o WHERE o.id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT ` + selectColumns + `
		FROM orders o
		WHERE ($1::text IS NULL OR o.status = $1)
		  AND ($2::text IS NULL OR o.payment_status = $2)
		  AND ($3::text = '' OR o.customer_email = $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4 OFFSET $5
	`

	var statusFilter, paymentFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}
	if filter.PaymentStatus != nil {
		s := string(*filter.PaymentStatus)
		paymentFilter = &s
	}

	offset := (page - 1) * pageSize

	rows, err := r.pool.Query(ctx, query, statusFilter, paymentFilter, filter.CustomerEmail, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus locks the row, applies the update and returns the replaced
// status in one statement.
func (r *Repository) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*ports.StatusChange, error) {
	query := `
		WITH prev AS (
			SELECT id, status FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o SET
			status = $2,
			tracking_number = COALESCE($3, o.tracking_number),
			shipping_carrier = COALESCE($4, o.shipping_carrier),
			estimated_delivery = COALESCE($5, o.estimated_delivery),
			notes = COALESCE($6, o.notes),
			updated_at = $7
		FROM prev
		WHERE o.id = prev.id
		  AND (cardinality($8::text[]) = 0 OR prev.status = ANY($8::text[]))
		RETURNING prev.status, ` + selectColumns

	allowed := make([]string, 0, len(update.AllowedFrom))
	for _, s := range update.AllowedFrom {
		allowed = append(allowed, string(s))
	}

	var previous string
	row := r.pool.QueryRow(ctx, query,
		id,
		string(update.Status),
		update.TrackingNumber,
		update.ShippingCarrier,
		update.EstimatedDelivery,
		update.Notes,
		update.UpdatedAt,
		allowed,
	)
	order, err := scanOrder(row, &previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	return &ports.StatusChange{Order: *order, Previous: domain.OrderStatus(previous)}, nil
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, update ports.PaymentUpdate) (*ports.PaymentChange, error) {
	query := `
		WITH prev AS (
			SELECT id, payment_status FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o SET
			payment_status = $2,
			updated_at = $3
		FROM prev
		WHERE o.id = prev.id
		RETURNING prev.payment_status, ` + selectColumns

	var previous string
	order, err := scanOrder(r.pool.QueryRow(ctx, query, id, string(update.Status), update.UpdatedAt), &previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	return &ports.PaymentChange{Order: *order, Previous: domain.PaymentStatus(previous)}, nil
}

func (r *Repository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrStatusConflict
}

// scanOrder reads selectColumns, preceded by any extra destinations.
func scanOrder(row pgx.Row, leading ...any) (*domain.Order, error) {
	var (
		order      domain.Order
		status     string
		payment    string
		items      []byte
		couponCode *string
		eta        *time.Time
	)

	dest := append(leading,
		&order.ID,
		&order.OrderNumber,
		&order.CustomerEmail,
		&status,
		&payment,
		&items,
		&order.SubtotalCents,
		&order.DiscountCents,
		&order.TaxCents,
		&order.ShippingCents,
		&order.TotalCents,
		&couponCode,
		&order.TrackingNumber,
		&order.ShippingCarrier,
		&eta,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(payment)
	if couponCode != nil {
		order.CouponCode = *couponCode
	}
	if eta != nil {
		utc := eta.UTC()
		order.EstimatedDelivery = &utc
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	return &order, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
