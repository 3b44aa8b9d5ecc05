package metrics

import (
	"context"
	"testing"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	return metrics, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestInitializeMetrics(t *testing.T) {
	t.Run("initializes all metric instruments successfully", func(t *testing.T) {
		metrics, _ := newTestMetrics(t)

		if metrics.validationsTotal == nil {
			t.Error("validationsTotal is nil")
		}
		if metrics.redemptionsTotal == nil {
			t.Error("redemptionsTotal is nil")
		}
		if metrics.discountGrantedCents == nil {
			t.Error("discountGrantedCents is nil")
		}
	})
}

func TestRecordValidation(t *testing.T) {
	t.Run("labels each outcome separately", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordValidation(ctx, domain.Accept(20000))
		metrics.RecordValidation(ctx, domain.Reject(domain.ReasonExpired))
		metrics.RecordValidation(ctx, domain.Reject(domain.ReasonExpired))

		m, ok := collect(t, reader, "coupon_validations_total")
		if !ok {
			t.Fatal("coupon_validations_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if len(sum.DataPoints) != 2 {
			t.Fatalf("Expected 2 data points, got %d", len(sum.DataPoints))
		}
		for _, dp := range sum.DataPoints {
			value, _ := dp.Attributes.Value(attribute.Key("outcome"))
			if value.AsString() == "Expired" && dp.Value != 2 {
				t.Errorf("Expected 2 expired validations, got %d", dp.Value)
			}
		}
	})

	t.Run("records granted discount only for accepted results", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordValidation(ctx, domain.Accept(500))
		metrics.RecordValidation(ctx, domain.Reject(domain.ReasonInactive))

		m, ok := collect(t, reader, "coupon_discount_granted_cents")
		if !ok {
			t.Fatal("coupon_discount_granted_cents metric not found")
		}
		histogram, ok := m.Data.(metricdata.Histogram[int64])
		if !ok {
			t.Fatal("Expected Histogram[int64] data type")
		}
		if histogram.DataPoints[0].Count != 1 {
			t.Errorf("Expected count=1, got %d", histogram.DataPoints[0].Count)
		}
	})
}

func TestRecordRedemption(t *testing.T) {
	t.Run("records redemption outcomes", func(t *testing.T) {
		metrics, reader := newTestMetrics(t)
		ctx := context.Background()

		metrics.RecordRedemption(ctx, domain.Accept(0))
		metrics.RecordRedemption(ctx, domain.Reject(domain.ReasonUsageLimitReached))

		m, ok := collect(t, reader, "coupon_redemptions_total")
		if !ok {
			t.Fatal("coupon_redemptions_total metric not found")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok {
			t.Fatal("Expected Sum[int64] data type")
		}
		if len(sum.DataPoints) != 2 {
			t.Errorf("Expected 2 data points, got %d", len(sum.DataPoints))
		}
	})
}
