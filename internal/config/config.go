package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	IdempotencyStorage = "storage"
	IdempotencyRedis   = "redis"
)

var ErrInvalid = errors.New("invalid configuration")

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
	Checkout  CheckoutConfig
}

type HTTPConfig struct {
	Port          int `env:"API_HTTP_PORT" envDefault:"8080"`
	ShutdownGrace int `env:"API_SHUTDOWN_GRACE_SECONDS" envDefault:"15"`
}

type DatabaseConfig struct {
	URL         string `env:"DATABASE_URL"`
	Host        string `env:"DB_HOST" envDefault:"localhost"`
	Port        string `env:"DB_PORT" envDefault:"5432"`
	User        string `env:"DB_USER" envDefault:"postgres"`
	Password    string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name        string `env:"DB_NAME" envDefault:"storefront"`
	SSLMode     string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns    string `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns    string `env:"DB_MIN_CONNS" envDefault:"5"`
	MaxLifetime string `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
}

type StorageConfig struct {
	Driver            string        `env:"STORAGE_DRIVER" envDefault:"postgres"`
	IdempotencyDriver string        `env:"IDEMPOTENCY_DRIVER" envDefault:"storage"`
	IdempotencyTTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	Database string `env:"MONGO_DATABASE" envDefault:"storefront"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

type TelemetryConfig struct {
	LogLevel      string  `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint  string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTracing bool    `env:"OTEL_ENABLE_TRACING" envDefault:"true"`
	EnableMetrics bool    `env:"OTEL_ENABLE_METRICS" envDefault:"true"`
	SampleRate    float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

type ServiceConfig struct {
	Name        string `env:"API_SERVICE_NAME" envDefault:"storefront-api"`
	Version     string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// CheckoutConfig holds the charges added at checkout. Amounts are in major
// currency units.
type CheckoutConfig struct {
	TaxRatePercent        decimal.Decimal `env:"TAX_RATE_PERCENT" envDefault:"0"`
	ShippingFee           decimal.Decimal `env:"SHIPPING_FEE" envDefault:"0"`
	FreeShippingThreshold decimal.Decimal `env:"FREE_SHIPPING_THRESHOLD" envDefault:"0"`
}

// Load reads configuration from environment variables, applying defaults when
// needed. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres, StorageMongo:
	default:
		return fmt.Errorf("%w: unknown STORAGE_DRIVER %q", ErrInvalid, c.Storage.Driver)
	}

	switch c.Storage.IdempotencyDriver {
	case IdempotencyStorage, IdempotencyRedis:
	default:
		return fmt.Errorf("%w: unknown IDEMPOTENCY_DRIVER %q", ErrInvalid, c.Storage.IdempotencyDriver)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: API_HTTP_PORT out of range", ErrInvalid)
	}
	if c.Storage.IdempotencyTTL < 0 {
		return fmt.Errorf("%w: IDEMPOTENCY_TTL must not be negative", ErrInvalid)
	}

	if c.Checkout.TaxRatePercent.IsNegative() || c.Checkout.TaxRatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: TAX_RATE_PERCENT must be between 0 and 100", ErrInvalid)
	}
	for name, amount := range map[string]decimal.Decimal{
		"SHIPPING_FEE":            c.Checkout.ShippingFee,
		"FREE_SHIPPING_THRESHOLD": c.Checkout.FreeShippingThreshold,
	} {
		if amount.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
		if !amount.Equal(amount.Round(2)) {
			return fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalid, name)
		}
	}

	return nil
}

// DatabaseURL returns DATABASE_URL, or a URL assembled from the DB_* variables.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	d := c.Database
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode, d.MaxConns, d.MinConns, d.MaxLifetime,
	)
}
