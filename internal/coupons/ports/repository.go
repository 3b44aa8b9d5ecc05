package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
)

// CouponRepository exposes persistence operations required by the application layer.
type CouponRepository interface {
	Create(ctx context.Context, coupon domain.Coupon) error
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Coupon, error)
	Update(ctx context.Context, coupon domain.Coupon) error
	Delete(ctx context.Context, code string) error
	Redeemer
}

// Redeemer performs the atomic usage counter updates. Redeem increments
// usage_count in one conditional write guarded by the checks of
// Coupon.Redeemable at the given time. A refused write returns the error for
// the first failing check (see RedeemError).
type Redeemer interface {
	Redeem(ctx context.Context, code string, at time.Time) error
	Release(ctx context.Context, code string) error
}

// ListFilter narrows list queries by active flag and pagination.
type ListFilter struct {
	Active   *bool
	Page     int
	PageSize int
}

var (
	// ErrNotFound is returned when the requested coupon does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeTaken is returned when creating a coupon whose code already exists.
	ErrCodeTaken = errors.New("coupon code already exists")
	// ErrUsageLimitReached is returned by Redeem when no redemption slots remain.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrInactive, ErrNotYetStarted and ErrExpired are returned by Redeem when
	// the coupon changed after it was evaluated.
	ErrInactive      = errors.New("coupon is inactive")
	ErrNotYetStarted = errors.New("coupon is not yet valid")
	ErrExpired       = errors.New("coupon has expired")
)

var redeemErrors = map[domain.Reason]error{
	domain.ReasonNotFound:          ErrNotFound,
	domain.ReasonInactive:          ErrInactive,
	domain.ReasonNotYetStarted:     ErrNotYetStarted,
	domain.ReasonExpired:           ErrExpired,
	domain.ReasonUsageLimitReached: ErrUsageLimitReached,
}

// RedeemError maps a refusal from Coupon.Redeemable to the error Redeem returns.
func RedeemError(reason domain.Reason) error {
	if err, ok := redeemErrors[reason]; ok {
		return err
	}
	return ErrUsageLimitReached
}

// RejectionReason reports the refusal carried by an error from Redeem.
func RejectionReason(err error) (domain.Reason, bool) {
	for reason, target := range redeemErrors {
		if errors.Is(err, target) {
			return reason, true
		}
	}
	return "", false
}
