package ports

import "context"

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	PublishOrderPlaced(ctx context.Context, orderID, orderNumber, couponCode string) error
	PublishOrderStatusChanged(ctx context.Context, orderID, from, to string) error
	PublishPaymentStatusChanged(ctx context.Context, orderID, from, to string) error
	PublishCouponRedeemed(ctx context.Context, code, orderID string) error
}
