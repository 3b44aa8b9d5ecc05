package events

import (
	"context"
	"log/slog"
)

const (
	TopicOrderPlaced               = "order.placed"
	TopicOrderStatusChanged        = "order.status_changed"
	TopicOrderPaymentStatusChanged = "order.payment_status_changed"
	TopicCouponRedeemed            = "coupon.redeemed"
)

// LogBus writes events to the structured log instead of a broker. Notification
// senders pick them up from the log pipeline.
type LogBus struct {
	logger *slog.Logger
}

func NewLogBus(logger *slog.Logger) *LogBus {
	return &LogBus{logger: logger}
}

func (b *LogBus) PublishOrderPlaced(ctx context.Context, orderID, orderNumber, couponCode string) error {
	b.logger.InfoContext(ctx, "event::"+TopicOrderPlaced,
		"order_id", orderID,
		"order_number", orderNumber,
		"coupon_code", couponCode,
	)
	return nil
}

func (b *LogBus) PublishOrderStatusChanged(ctx context.Context, orderID, from, to string) error {
	b.logger.InfoContext(ctx, "event::"+TopicOrderStatusChanged,
		"order_id", orderID,
		"from", from,
		"to", to,
	)
	return nil
}

func (b *LogBus) PublishPaymentStatusChanged(ctx context.Context, orderID, from, to string) error {
	b.logger.InfoContext(ctx, "event::"+TopicOrderPaymentStatusChanged,
		"order_id", orderID,
		"from", from,
		"to", to,
	)
	return nil
}

// PublishCouponRedeemed reports a consumed redemption slot. orderID is empty
// for standalone redemptions.
func (b *LogBus) PublishCouponRedeemed(ctx context.Context, code, orderID string) error {
	b.logger.InfoContext(ctx, "event::"+TopicCouponRedeemed,
		"coupon_code", code,
		"order_id", orderID,
	)
	return nil
}
