package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"missing service version", func(c *Config) { c.ServiceVersion = "" }, ErrMissingServiceVersion},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, ErrInvalidSampleRate},
		{"sample rate above one", func(c *Config) { c.SampleRate = 1.1 }, ErrInvalidSampleRate},
		{"sample rate zero", func(c *Config) { c.SampleRate = 0 }, nil},
		{"partial sampling", func(c *Config) { c.SampleRate = 0.5 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) || !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v wrapped in ErrInvalidConfig, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.ServiceName = ""

		tel, err := Initialize(ctx, cfg)
		if err == nil || tel != nil {
			t.Fatalf("expected error and nil telemetry, got %v, %v", tel, err)
		}
	})

	t.Run("disabled signals leave providers unset", func(t *testing.T) {
		tel, err := Initialize(ctx, testConfig())
		if err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		defer shutdown(t, tel)

		if tel.TracerProvider() != nil || tel.MeterProvider() != nil {
			t.Error("expected no providers")
		}
		if tel.Meter("storefront") == nil {
			t.Error("expected fallback meter")
		}
	})

	t.Run("tracing and metrics with injected exporters", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = true
		cfg.EnableMetrics = true

		tel, err := Initialize(ctx, cfg,
			WithTraceExporter(tracetest.NewInMemoryExporter()),
			WithMetricExporter(&noopMetricExporter{}),
		)
		if err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		defer shutdown(t, tel)

		if tel.TracerProvider() == nil {
			t.Error("expected tracer provider")
		}
		if tel.MeterProvider() == nil {
			t.Error("expected meter provider")
		}

		counter, err := tel.Meter("storefront").Int64Counter("checks_total")
		if err != nil {
			t.Fatalf("create counter: %v", err)
		}
		counter.Add(ctx, 1)
	})
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
	}

	for _, tt := range tests {
		if got := createSampler(tt.rate).Description(); got != tt.want {
			t.Errorf("createSampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}

	if got := createSampler(0.25).Description(); got == "AlwaysOnSampler" || got == "AlwaysOffSampler" {
		t.Errorf("expected ratio sampler, got %s", got)
	}
}
