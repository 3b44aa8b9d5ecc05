package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableCommandHandler struct {
	handler CommandHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCommandHandler(handler CommandHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCommandHandler {
	return &ObservableCommandHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCommandHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*PlaceOrderResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "PlaceOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		o.metrics.RecordOrderPlacementDuration(ctx, time.Since(start).Seconds())
		o.metrics.RecordOrderPlaced(ctx, outcome)
	}()

	o.logger.InfoContext(ctx, "placing order",
		"customer_email", cmd.CustomerEmail,
		"items", len(cmd.Items),
		"coupon_code", cmd.CouponCode,
	)

	result, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to place order",
			"error", err,
			"customer_email", cmd.CustomerEmail,
		)
		return nil, err
	}

	if result.Order == nil {
		outcome = metrics.OutcomeCouponRejected
		telemetry.AddSpanEvent(span, "coupon.rejected",
			attribute.String("coupon.code", cmd.CouponCode),
			attribute.String("coupon.rejection", string(result.CouponRejection)),
		)
		o.logger.InfoContext(ctx, "order refused, coupon rejected",
			"coupon_code", cmd.CouponCode,
			"reason", result.CouponRejection,
		)
		return result, nil
	}

	order := result.Order
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
		attribute.Int64("order.total_cents", order.TotalCents),
		attribute.String("order.coupon_code", order.CouponCode),
	)

	o.logger.InfoContext(ctx, "order placed successfully",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total_cents", order.TotalCents,
	)

	outcome = metrics.OutcomePlaced
	telemetry.SetSpanSuccess(span)

	return result, nil
}
