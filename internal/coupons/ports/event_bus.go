package ports

import "context"

// EventBus publishes coupon lifecycle events.
type EventBus interface {
	PublishCouponRedeemed(ctx context.Context, code, orderID string) error
}
