//go:build integration

package mongo_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	couponsmongo "github.com/dejobratic/storefront/internal/coupons/adapters/mongo"
	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/database/dbtest"
	"github.com/shopspring/decimal"
)

func newCoupon(code string, limit int) domain.Coupon {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return domain.Coupon{
		Code:          code,
		DiscountType:  domain.DiscountFixed,
		DiscountValue: decimal.RequireFromString("150.50"),
		StartDate:     now.Add(-time.Hour),
		ExpiryDate:    now.Add(24 * time.Hour),
		UsageLimit:    limit,
		IsActive:      true,
		AppliesTo:     domain.ScopeProducts,
		ApplicableProducts: []string{
			"p-1",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	store := dbtest.NewMongo(t)
	repo := couponsmongo.NewRepository(store.DB.Collection(database.CouponsCollection))
	ctx := context.Background()

	coupon := newCoupon("FLAT150", 0)
	if err := repo.Create(ctx, coupon); err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}
	if err := repo.Create(ctx, coupon); !errors.Is(err, ports.ErrCodeTaken) {
		t.Errorf("expected ErrCodeTaken, got %v", err)
	}

	got, err := repo.GetByCode(ctx, "FLAT150")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}
	if !got.DiscountValue.Equal(coupon.DiscountValue) {
		t.Errorf("expected discount value %s, got %s", coupon.DiscountValue, got.DiscountValue)
	}
	if !got.StartDate.Equal(coupon.StartDate) {
		t.Errorf("expected start %v, got %v", coupon.StartDate, got.StartDate)
	}

	if _, err := repo.GetByCode(ctx, "MISSING"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryRedeemRace(t *testing.T) {
	const limit = 4
	store := dbtest.NewMongo(t)
	repo := couponsmongo.NewRepository(store.DB.Collection(database.CouponsCollection))
	ctx := context.Background()

	if err := repo.Create(ctx, newCoupon("RACE", limit)); err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < limit+5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Redeem(ctx, "RACE", time.Now().UTC())
			if err == nil {
				succeeded.Add(1)
				return
			}
			if !errors.Is(err, ports.ErrUsageLimitReached) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != limit {
		t.Errorf("expected exactly %d redemptions, got %d", limit, succeeded.Load())
	}
}

func TestRepositoryUpdateKeepsUsage(t *testing.T) {
	store := dbtest.NewMongo(t)
	repo := couponsmongo.NewRepository(store.DB.Collection(database.CouponsCollection))
	ctx := context.Background()

	if err := repo.Create(ctx, newCoupon("EDIT", 3)); err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}
	if err := repo.Redeem(ctx, "EDIT", time.Now().UTC()); err != nil {
		t.Fatalf("failed to redeem: %v", err)
	}

	edited := newCoupon("EDIT", 9)
	edited.IsActive = false
	if err := repo.Update(ctx, edited); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	got, err := repo.GetByCode(ctx, "EDIT")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}
	if got.UsageCount != 1 || got.UsageLimit != 9 || got.IsActive {
		t.Errorf("unexpected coupon after update: %+v", got)
	}

	if err := repo.Release(ctx, "EDIT"); err != nil {
		t.Fatalf("failed to release: %v", err)
	}
	if err := repo.Delete(ctx, "EDIT"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := repo.Update(ctx, edited); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryRedeemRefusesUnusableCoupons(t *testing.T) {
	store := dbtest.NewMongo(t)
	repo := couponsmongo.NewRepository(store.DB.Collection(database.CouponsCollection))
	ctx := context.Background()

	inactive := newCoupon("PAUSED", 0)
	inactive.IsActive = false
	for _, c := range []domain.Coupon{newCoupon("WINDOW", 0), inactive} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("failed to create coupon: %v", err)
		}
	}

	now := time.Now().UTC()
	if err := repo.Redeem(ctx, "PAUSED", now); !errors.Is(err, ports.ErrInactive) {
		t.Errorf("expected ErrInactive, got %v", err)
	}
	if err := repo.Redeem(ctx, "WINDOW", now.Add(-2*time.Hour)); !errors.Is(err, ports.ErrNotYetStarted) {
		t.Errorf("expected ErrNotYetStarted, got %v", err)
	}
	if err := repo.Redeem(ctx, "WINDOW", now.Add(48*time.Hour)); !errors.Is(err, ports.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}
