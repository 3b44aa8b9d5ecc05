//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	couponspg "github.com/dejobratic/storefront/internal/coupons/adapters/postgres"
	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
	couponports "github.com/dejobratic/storefront/internal/coupons/ports"
	"github.com/dejobratic/storefront/internal/database/dbtest"
	"github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

func newOrder(i int, coupon string) domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.Order{
		ID:            fmt.Sprintf("order-%02d", i),
		OrderNumber:   fmt.Sprintf("ORD-20260601-%06d", i),
		CustomerEmail: "user@example.com",
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		Items: []domain.Item{
			{ProductID: "p-1", VariantID: "v-1", Name: "Linen Shirt", CategoryID: "shirts", Quantity: 2, UnitPriceCents: 75005, Size: "M", Color: "blue"},
		},
		SubtotalCents: 150010,
		DiscountCents: 15001,
		TaxCents:      6750,
		ShippingCents: 4900,
		TotalCents:    150010 - 15001 + 6750 + 4900,
		CouponCode:    coupon,
		CreatedAt:     now.Add(time.Duration(i) * time.Second),
		UpdatedAt:     now.Add(time.Duration(i) * time.Second),
	}
}

func TestOrderRepository(t *testing.T) {
	pool := dbtest.NewPostgres(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	t.Run("round trip preserves totals and item snapshot", func(t *testing.T) {
		order := newOrder(1, "")
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}

		got, err := repo.GetByID(ctx, order.ID)
		if err != nil {
			t.Fatalf("failed to get order: %v", err)
		}
		if got.TotalCents != got.SubtotalCents-got.DiscountCents+got.TaxCents+got.ShippingCents {
			t.Errorf("totals invariant broken after round trip: %+v", got)
		}
		if got.TotalCents != order.TotalCents {
			t.Errorf("expected total %d, got %d", order.TotalCents, got.TotalCents)
		}
		if len(got.Items) != 1 || got.Items[0] != order.Items[0] {
			t.Errorf("expected items %+v, got %+v", order.Items, got.Items)
		}
		if err := got.Validate(); err != nil {
			t.Errorf("reloaded order is invalid: %v", err)
		}
	})

	t.Run("rejects duplicate order number", func(t *testing.T) {
		dup := newOrder(1, "")
		dup.ID = "another-id"
		if err := repo.Create(ctx, dup); !errors.Is(err, ports.ErrDuplicateOrderNumber) {
			t.Errorf("expected ErrDuplicateOrderNumber, got %v", err)
		}
	})

	t.Run("applies unguarded status update and reports previous status", func(t *testing.T) {
		tracking := "1Z999"
		eta := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Microsecond)

		change, err := repo.UpdateStatus(ctx, "order-01", domain.StatusUpdate{
			Status:            domain.StatusDelivered,
			TrackingNumber:    &tracking,
			EstimatedDelivery: &eta,
			UpdatedAt:         time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("failed to update status: %v", err)
		}
		if change.Previous != domain.StatusPending || change.Order.Status != domain.StatusDelivered {
			t.Errorf("unexpected change: previous=%s status=%s", change.Previous, change.Order.Status)
		}
		if change.Order.TrackingNumber != tracking || change.Order.EstimatedDelivery == nil || !change.Order.EstimatedDelivery.Equal(eta) {
			t.Errorf("unexpected shipping fields: %+v", change.Order)
		}
	})

	t.Run("refuses guarded update from disallowed status", func(t *testing.T) {
		_, err := repo.UpdateStatus(ctx, "order-01", domain.StatusUpdate{
			Status:      domain.StatusCancelled,
			UpdatedAt:   time.Now().UTC(),
			AllowedFrom: []domain.OrderStatus{domain.StatusPending, domain.StatusConfirmed},
		})
		if !errors.Is(err, ports.ErrStatusConflict) {
			t.Errorf("expected ErrStatusConflict, got %v", err)
		}

		_, err = repo.UpdateStatus(ctx, "missing", domain.StatusUpdate{Status: domain.StatusCancelled, UpdatedAt: time.Now().UTC()})
		if !errors.Is(err, ports.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("updates payment status independently", func(t *testing.T) {
		change, err := repo.UpdatePaymentStatus(ctx, "order-01", ports.PaymentUpdate{
			Status:    domain.PaymentCompleted,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("failed to update payment: %v", err)
		}
		if change.Previous != domain.PaymentPending || change.Order.Status != domain.StatusDelivered {
			t.Errorf("unexpected change: %+v", change)
		}
	})

	t.Run("lists with filters newest first", func(t *testing.T) {
		if err := repo.Create(ctx, newOrder(2, "")); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}

		orders, err := repo.List(ctx, ports.ListFilter{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(orders) != 2 || orders[0].ID != "order-02" {
			t.Errorf("expected newest first, got %d orders", len(orders))
		}

		delivered := domain.StatusDelivered
		orders, err = repo.List(ctx, ports.ListFilter{Status: &delivered})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(orders) != 1 || orders[0].ID != "order-01" {
			t.Errorf("expected only order-01, got %d orders", len(orders))
		}
	})
}

func TestCheckoutRedemptionRace(t *testing.T) {
	const limit = 5
	pool := dbtest.NewPostgres(t)
	coupons := couponspg.NewRepository(pool)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC()
	err := coupons.Create(ctx, coupondomain.Coupon{
		Code:          "LAST5",
		DiscountType:  coupondomain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartDate:     now.Add(-time.Hour),
		ExpiryDate:    now.Add(time.Hour),
		UsageLimit:    limit,
		IsActive:      true,
		AppliesTo:     coupondomain.ScopeAll,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("failed to create coupon: %v", err)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < limit+5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, newOrder(i, "LAST5"))
			if err == nil {
				succeeded.Add(1)
				return
			}
			if !errors.Is(err, couponports.ErrUsageLimitReached) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != limit {
		t.Errorf("expected %d orders, got %d", limit, succeeded.Load())
	}

	coupon, err := coupons.GetByCode(ctx, "LAST5")
	if err != nil {
		t.Fatalf("failed to get coupon: %v", err)
	}
	if coupon.UsageCount != limit {
		t.Errorf("expected usage count %d, got %d", limit, coupon.UsageCount)
	}

	orders, err := repo.List(ctx, ports.ListFilter{PageSize: 100})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(orders) != limit {
		t.Errorf("expected %d stored orders, got %d", limit, len(orders))
	}
}
