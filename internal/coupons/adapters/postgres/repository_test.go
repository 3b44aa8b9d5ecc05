//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/adapters/postgres"
	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database/dbtest"
	"github.com/shopspring/decimal"
)

func newCoupon(code string, limit int) domain.Coupon {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Coupon{
		Code:                 code,
		Description:          "integration",
		DiscountType:         domain.DiscountPercentage,
		DiscountValue:        decimal.RequireFromString("12.5"),
		MinimumPurchaseCents: 100000,
		StartDate:            now.Add(-time.Hour),
		ExpiryDate:           now.Add(24 * time.Hour),
		UsageLimit:           limit,
		IsActive:             true,
		AppliesTo:            domain.ScopeCategories,
		ApplicableCategories: []string{"shoes", "bags"},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	pool := dbtest.NewPostgres(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	coupon := newCoupon("SUMMER10", 2)
	if err := repo.Create(ctx, coupon); err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	got, err := repo.GetByCode(ctx, "SUMMER10")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}

	if !got.DiscountValue.Equal(coupon.DiscountValue) {
		t.Errorf("expected discount value %s, got %s", coupon.DiscountValue, got.DiscountValue)
	}
	if got.AppliesTo != domain.ScopeCategories || len(got.ApplicableCategories) != 2 {
		t.Errorf("unexpected scope %s %v", got.AppliesTo, got.ApplicableCategories)
	}
	if len(got.ApplicableProducts) != 0 {
		t.Errorf("expected no products, got %v", got.ApplicableProducts)
	}
	if !got.ExpiryDate.Equal(coupon.ExpiryDate) {
		t.Errorf("expected expiry %v, got %v", coupon.ExpiryDate, got.ExpiryDate)
	}

	if err := repo.Create(ctx, coupon); !errors.Is(err, ports.ErrCodeTaken) {
		t.Errorf("expected ErrCodeTaken, got %v", err)
	}
}

func TestRepositoryGetByCode_NotFound(t *testing.T) {
	pool := dbtest.NewPostgres(t)
	repo := postgres.NewRepository(pool)

	if _, err := repo.GetByCode(context.Background(), "NOPE"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	pool := dbtest.NewPostgres(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	if err := repo.Create(ctx, newCoupon("EDITME", 5)); err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}
	if err := repo.Redeem(ctx, "EDITME", time.Now().UTC()); err != nil {
		t.Fatalf("failed to redeem: %v", err)
	}

	edited := newCoupon("EDITME", 10)
	edited.IsActive = false
	if err := repo.Update(ctx, edited); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	got, err := repo.GetByCode(ctx, "EDITME")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}
	if got.UsageCount != 1 || got.UsageLimit != 10 || got.IsActive {
		t.Errorf("unexpected coupon after update: %+v", got)
	}

	active := false
	list, err := repo.List(ctx, ports.ListFilter{Active: &active})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 inactive coupon, got %d", len(list))
	}

	if err := repo.Delete(ctx, "EDITME"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := repo.Delete(ctx, "EDITME"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryRedeemRace(t *testing.T) {
	const limit = 5
	pool := dbtest.NewPostgres(t)
	repo := postgres.NewRepository(pool)
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

	got, err := repo.GetByCode(ctx, "RACE")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}
	if got.UsageCount != limit {
		t.Errorf("expected usage count %d, got %d", limit, got.UsageCount)
	}

	if err := repo.Redeem(ctx, "MISSING", time.Now().UTC()); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryRedeemRefusesUnusableCoupons(t *testing.T) {
	pool := dbtest.NewPostgres(t)
	repo := postgres.NewRepository(pool)
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

	got, err := repo.GetByCode(ctx, "WINDOW")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}
	if got.UsageCount != 0 {
		t.Errorf("expected usage count 0, got %d", got.UsageCount)
	}
}
