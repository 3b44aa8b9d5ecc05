package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	// Create inserts the order. When CouponCode is set, one redemption of that
	// coupon is consumed in the same atomic operation, guarded by the coupon's
	// active flag and window at order.CreatedAt. Refusals from coupons/ports
	// (ErrUsageLimitReached, ErrInactive, ErrExpired, ErrNotFound, ...) are
	// returned unchanged and nothing is written.
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// UpdateStatus applies the update in one write. It returns ErrStatusConflict
	// when the update carries AllowedFrom and the stored status is not in it.
	UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) (*StatusChange, error)
	UpdatePaymentStatus(ctx context.Context, id string, update PaymentUpdate) (*PaymentChange, error)
}

// ListFilter narrows list queries. Results are newest first and pagination is 1-based.
type ListFilter struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	CustomerEmail string
	Page          int
	PageSize      int
}

// PaymentUpdate sets the payment axis of an order.
type PaymentUpdate struct {
	Status    domain.PaymentStatus
	UpdatedAt time.Time
}

// StatusChange is the stored order after an update, with the status it replaced.
type StatusChange struct {
	Order    domain.Order
	Previous domain.OrderStatus
}

// PaymentChange is the stored order after a payment update, with the value it replaced.
type PaymentChange struct {
	Order    domain.Order
	Previous domain.PaymentStatus
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateOrderNumber is returned when an order number is already taken.
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	// ErrStatusConflict is returned when a guarded status update finds the order
	// in a status it may not replace.
	ErrStatusConflict = errors.New("order status does not permit this change")
)
