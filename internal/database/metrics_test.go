package database

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitializeMetrics(t *testing.T) {
	t.Run("initializes all metric instruments successfully", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		metrics, err := NewMetrics(mp.Meter("test"), "postgres")
		if err != nil {
			t.Fatalf("NewMetrics() failed: %v", err)
		}

		if metrics.queryDuration == nil {
			t.Error("queryDuration is nil")
		}
		if metrics.queryErrors == nil {
			t.Error("queryErrors is nil")
		}
	})
}

func TestRecordDatabaseQuery(t *testing.T) {
	t.Run("records duration for every call and errors only for failures", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		metrics, err := NewMetrics(mp.Meter("test"), "mongo")
		if err != nil {
			t.Fatalf("NewMetrics() failed: %v", err)
		}

		ctx := context.Background()
		metrics.RecordQuery(ctx, "redeem_coupon", 0.1, nil)
		metrics.RecordQuery(ctx, "get_order_by_id", 0.05, nil)
		metrics.RecordQuery(ctx, "get_order_by_id", 0.07, errors.New("connection reset"))

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			t.Fatalf("Failed to collect metrics: %v", err)
		}

		foundHistogram := false
		foundErrors := false
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				switch m.Name {
				case "db_query_duration_seconds":
					foundHistogram = true
					histogram, ok := m.Data.(metricdata.Histogram[float64])
					if !ok {
						t.Fatal("Expected Histogram[float64] data type")
					}
					if len(histogram.DataPoints) != 2 {
						t.Errorf("Expected 2 data points, got %d", len(histogram.DataPoints))
					}
				case "db_query_errors_total":
					foundErrors = true
					sum, ok := m.Data.(metricdata.Sum[int64])
					if !ok {
						t.Fatal("Expected Sum[int64] data type")
					}
					if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
						t.Errorf("Expected a single error data point of 1, got %+v", sum.DataPoints)
					}
				}
			}
		}

		if !foundHistogram {
			t.Error("db_query_duration_seconds metric not found")
		}
		if !foundErrors {
			t.Error("db_query_errors_total metric not found")
		}
	})
}
