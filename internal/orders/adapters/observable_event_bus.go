package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/events"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *events.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *events.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishOrderPlaced(ctx context.Context, orderID, orderNumber, couponCode string) error {
	return e.observe(ctx, events.TopicOrderPlaced, "EventBus.PublishOrderPlaced",
		[]attribute.KeyValue{
			attribute.String("order.id", orderID),
			attribute.String("order.number", orderNumber),
			attribute.String("order.coupon_code", couponCode),
		},
		func(ctx context.Context) error {
			return e.bus.PublishOrderPlaced(ctx, orderID, orderNumber, couponCode)
		},
	)
}

func (e *ObservableEventBus) PublishOrderStatusChanged(ctx context.Context, orderID, from, to string) error {
	return e.observe(ctx, events.TopicOrderStatusChanged, "EventBus.PublishOrderStatusChanged",
		[]attribute.KeyValue{
			attribute.String("order.id", orderID),
			attribute.String("status.from", from),
			attribute.String("status.to", to),
		},
		func(ctx context.Context) error {
			return e.bus.PublishOrderStatusChanged(ctx, orderID, from, to)
		},
	)
}

func (e *ObservableEventBus) PublishPaymentStatusChanged(ctx context.Context, orderID, from, to string) error {
	return e.observe(ctx, events.TopicOrderPaymentStatusChanged, "EventBus.PublishPaymentStatusChanged",
		[]attribute.KeyValue{
			attribute.String("order.id", orderID),
			attribute.String("payment.from", from),
			attribute.String("payment.to", to),
		},
		func(ctx context.Context) error {
			return e.bus.PublishPaymentStatusChanged(ctx, orderID, from, to)
		},
	)
}

func (e *ObservableEventBus) PublishCouponRedeemed(ctx context.Context, code, orderID string) error {
	return e.observe(ctx, events.TopicCouponRedeemed, "EventBus.PublishCouponRedeemed",
		[]attribute.KeyValue{
			attribute.String("coupon.code", code),
			attribute.String("order.id", orderID),
		},
		func(ctx context.Context) error {
			return e.bus.PublishCouponRedeemed(ctx, code, orderID)
		},
	)
}

func (e *ObservableEventBus) observe(ctx context.Context, topic, spanName string, attrs []attribute.KeyValue, publish func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	attrs = append(attrs,
		attribute.String("event.type", topic),
		attribute.String("topic", topic),
	)
	telemetry.AddSpanAttributes(span, attrs...)

	start := time.Now()
	err := publish(ctx)
	e.metrics.RecordPublish(ctx, topic, time.Since(start).Seconds(), err == nil)

	telemetry.CompleteSpan(span, err)
	return err
}
