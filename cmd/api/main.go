package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/storefront/internal/config"
	couponsadapters "github.com/dejobratic/storefront/internal/coupons/adapters"
	couponshttp "github.com/dejobratic/storefront/internal/coupons/adapters/http"
	couponsapp "github.com/dejobratic/storefront/internal/coupons/app"
	couponsmetrics "github.com/dejobratic/storefront/internal/coupons/metrics"
	couponports "github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/events"
	"github.com/dejobratic/storefront/internal/httpapi"
	"github.com/dejobratic/storefront/internal/money"
	ordersadapters "github.com/dejobratic/storefront/internal/orders/adapters"
	ordershttp "github.com/dejobratic/storefront/internal/orders/adapters/http"
	ordersapp "github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/domain"
	ordersmetrics "github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
)

const meterName = "github.com/dejobratic/storefront"

func main() {
	if err := run(); err != nil {
		slog.Error("storefront api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := telemetry.ParseLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		return err
	}
	logger := telemetry.NewLogger(os.Stdout, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		Insecure:       true,
		EnableTracing:  cfg.Telemetry.EnableTracing && cfg.Telemetry.OTelEndpoint != "",
		EnableMetrics:  cfg.Telemetry.EnableMetrics && cfg.Telemetry.OTelEndpoint != "",
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()
	meter := tel.Meter(meterName)

	store, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close(context.Background(), logger)

	dbMetrics, err := database.NewMetrics(meter, cfg.Storage.Driver)
	if err != nil {
		return err
	}
	eventMetrics, err := events.NewMetrics(meter)
	if err != nil {
		return err
	}
	couponMetrics, err := couponsmetrics.NewMetrics(meter)
	if err != nil {
		return err
	}
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return err
	}
	httpMetrics, err := httpapi.NewMetrics(meter)
	if err != nil {
		return err
	}

	eventBus := ordersadapters.NewObservableEventBus(events.NewLogBus(logger), eventMetrics)

	couponService := couponsapp.NewService(
		couponsadapters.NewObservableRepository(store.coupons, dbMetrics),
		eventBus,
		couponports.SystemClock,
		logger,
		couponMetrics,
	)

	pricing := domain.Pricing{
		TaxRatePercent:             cfg.Checkout.TaxRatePercent,
		ShippingFeeCents:           money.ToMinor(cfg.Checkout.ShippingFee),
		FreeShippingThresholdCents: money.ToMinor(cfg.Checkout.FreeShippingThreshold),
	}

	orderService := ordersapp.NewService(
		ordersadapters.NewObservableRepository(store.orders, dbMetrics),
		eventBus,
		couponService,
		store.idempotency,
		pricing,
		couponports.SystemClock,
		logger,
		orderMetrics,
	)

	mux := http.NewServeMux()
	httpapi.RegisterHealth(mux, logger, store.health)
	couponshttp.NewHandler(couponService, logger).Register(mux)
	ordershttp.NewHandler(orderService, logger).Register(mux)

	handler := httpapi.WithRecovery(httpapi.WithLogging(httpapi.WithMetrics(mux, httpMetrics), logger), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			"port", cfg.HTTP.Port,
			"storage", cfg.Storage.Driver,
			"idempotency", cfg.Storage.IdempotencyDriver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	logger.Info("http server stopped")

	return nil
}
