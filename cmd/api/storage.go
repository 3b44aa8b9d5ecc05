package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dejobratic/storefront/internal/config"
	couponsmemory "github.com/dejobratic/storefront/internal/coupons/adapters/memory"
	couponsmongo "github.com/dejobratic/storefront/internal/coupons/adapters/mongo"
	couponspostgres "github.com/dejobratic/storefront/internal/coupons/adapters/postgres"
	couponports "github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database"
	idemmemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/storefront/internal/idempotency/postgres"
	idemredis "github.com/dejobratic/storefront/internal/idempotency/redis"
	ordersmemory "github.com/dejobratic/storefront/internal/orders/adapters/memory"
	ordersmongo "github.com/dejobratic/storefront/internal/orders/adapters/mongo"
	orderspostgres "github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	orderports "github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/migrations"
)

// backends bundles the repositories for the configured storage driver along
// with the clients that need closing on shutdown.
type backends struct {
	coupons     couponports.CouponRepository
	orders      orderports.OrderRepository
	idempotency orderports.IdempotencyStore
	health      map[string]database.Pinger
	closers     []func(context.Context) error
}

func (b *backends) close(ctx context.Context, logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			logger.Error("failed to close backend", "error", err)
		}
	}
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{health: map[string]database.Pinger{}}
	ttl := cfg.Storage.IdempotencyTTL

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if cfg.Storage.AutoMigrate {
			logger.Info("running database migrations")
			if err := database.RunMigrations(cfg.DatabaseURL(), migrations.FS); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("migrations completed successfully")
		}

		pool, err := database.NewPool(ctx, cfg.DatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error {
			pool.Close()
			return nil
		})

		b.coupons = couponspostgres.NewRepository(pool)
		b.orders = orderspostgres.NewRepository(pool)
		b.idempotency = idempostgres.NewStore(pool, ttl)
		b.health["postgres"] = pool

	case config.StorageMongo:
		store, err := database.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store.Close)

		if err := store.EnsureIndexes(ctx); err != nil {
			b.close(ctx, logger)
			return nil, err
		}

		b.coupons = couponsmongo.NewRepository(store.DB.Collection(database.CouponsCollection))
		b.orders = ordersmongo.NewRepository(store)
		b.idempotency = idemmemory.NewStore(idemmemory.WithTTL(ttl))
		b.health["mongo"] = store

	default:
		coupons := couponsmemory.NewRepository()
		b.coupons = coupons
		b.orders = ordersmemory.NewRepository(coupons)
		b.idempotency = idemmemory.NewStore(idemmemory.WithTTL(ttl))
	}

	if cfg.Storage.IdempotencyDriver == config.IdempotencyRedis {
		store, err := idemredis.Connect(ctx, cfg.Redis.URL, ttl)
		if err != nil {
			b.close(ctx, logger)
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return store.Close() })
		b.idempotency = store
		b.health["redis"] = store
	}

	return b, nil
}
