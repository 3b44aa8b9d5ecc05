package metrics

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	validationsTotal     metric.Int64Counter
	redemptionsTotal     metric.Int64Counter
	discountGrantedCents metric.Int64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.validationsTotal, err = meter.Int64Counter(
		"coupon_validations_total",
		metric.WithDescription("Coupon validations by outcome"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create coupon_validations_total counter: %w", err)
	}

	m.redemptionsTotal, err = meter.Int64Counter(
		"coupon_redemptions_total",
		metric.WithDescription("Coupon redemption attempts by outcome"),
		metric.WithUnit("{redemption}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create coupon_redemptions_total counter: %w", err)
	}

	m.discountGrantedCents, err = meter.Int64Histogram(
		"coupon_discount_granted_cents",
		metric.WithDescription("Discount granted by accepted coupon validations"),
		metric.WithUnit("{cent}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create coupon_discount_granted histogram: %w", err)
	}

	return m, nil
}

// RecordValidation counts one evaluation. Accepted results are labelled "ok".
func (m *Metrics) RecordValidation(ctx context.Context, result domain.Result) {
	m.validationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome(result)),
	))
	if result.OK {
		m.discountGrantedCents.Record(ctx, result.DiscountCents)
	}
}

func (m *Metrics) RecordRedemption(ctx context.Context, result domain.Result) {
	m.redemptionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome(result)),
	))
}

func outcome(result domain.Result) string {
	if result.OK {
		return "ok"
	}
	return string(result.Reason)
}
