package domain_test

import (
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/shopspring/decimal"
)

func TestEvaluateSummerScenario(t *testing.T) {
	c := validCoupon()

	t.Run("applies to a 2000 cart", func(t *testing.T) {
		res := c.Evaluate(domain.Cart{SubtotalCents: 200000}, now)
		if !res.OK {
			t.Fatalf("expected ok, got reason %s", res.Reason)
		}
		if res.DiscountCents != 20000 {
			t.Errorf("expected discount 20000, got %d", res.DiscountCents)
		}
	})

	t.Run("rejects a 500 cart", func(t *testing.T) {
		res := c.Evaluate(domain.Cart{SubtotalCents: 50000}, now)
		if res.OK || res.Reason != domain.ReasonBelowMinimumPurchase {
			t.Errorf("expected BelowMinimumPurchase, got %+v", res)
		}
	})
}

func TestEvaluateOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.Coupon)
		cart   domain.Cart
		want   domain.Reason
	}{
		{
			name:   "inactive wins over dates",
			mutate: func(c *domain.Coupon) { c.IsActive = false; c.ExpiryDate = now.Add(-time.Hour) },
			cart:   domain.Cart{SubtotalCents: 200000},
			want:   domain.ReasonInactive,
		},
		{
			name:   "future start",
			mutate: func(c *domain.Coupon) { c.StartDate = now.Add(time.Hour) },
			cart:   domain.Cart{SubtotalCents: 200000},
			want:   domain.ReasonNotYetStarted,
		},
		{
			name: "past expiry",
			mutate: func(c *domain.Coupon) {
				c.StartDate = now.Add(-48 * time.Hour)
				c.ExpiryDate = now.Add(-time.Hour)
			},
			cart: domain.Cart{SubtotalCents: 200000},
			want: domain.ReasonExpired,
		},
		{
			name:   "usage exhausted",
			mutate: func(c *domain.Coupon) { c.UsageCount = 2 },
			cart:   domain.Cart{SubtotalCents: 200000},
			want:   domain.ReasonUsageLimitReached,
		},
		{
			name:   "usage exhausted wins over minimum purchase",
			mutate: func(c *domain.Coupon) { c.UsageCount = 2 },
			cart:   domain.Cart{SubtotalCents: 1},
			want:   domain.ReasonUsageLimitReached,
		},
		{
			name: "category mismatch",
			mutate: func(c *domain.Coupon) {
				c.AppliesTo = domain.ScopeCategories
				c.ApplicableCategories = []string{"shoes"}
			},
			cart: domain.Cart{SubtotalCents: 200000, CategoryIDs: []string{"shirts"}},
			want: domain.ReasonNotApplicable,
		},
		{
			name: "product mismatch",
			mutate: func(c *domain.Coupon) {
				c.AppliesTo = domain.ScopeProducts
				c.ApplicableProducts = []string{"p-1"}
			},
			cart: domain.Cart{SubtotalCents: 200000, ProductIDs: []string{"p-2"}},
			want: domain.ReasonNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCoupon()
			tt.mutate(&c)
			res := c.Evaluate(tt.cart, now)
			if res.OK {
				t.Fatalf("expected rejection %s, got ok", tt.want)
			}
			if res.Reason != tt.want {
				t.Errorf("expected reason %s, got %s", tt.want, res.Reason)
			}
		})
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	t.Run("minimum purchase is inclusive", func(t *testing.T) {
		c := validCoupon()
		if res := c.Evaluate(domain.Cart{SubtotalCents: c.MinimumPurchaseCents - 1}, now); res.Reason != domain.ReasonBelowMinimumPurchase {
			t.Errorf("expected BelowMinimumPurchase for M-1, got %+v", res)
		}
		if res := c.Evaluate(domain.Cart{SubtotalCents: c.MinimumPurchaseCents}, now); !res.OK {
			t.Errorf("expected ok for M, got %+v", res)
		}
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		c := validCoupon()
		cart := domain.Cart{SubtotalCents: 200000}
		if res := c.Evaluate(cart, c.StartDate); !res.OK {
			t.Errorf("expected ok at start_date, got %+v", res)
		}
		if res := c.Evaluate(cart, c.ExpiryDate); !res.OK {
			t.Errorf("expected ok at expiry_date, got %+v", res)
		}
	})

	t.Run("unlimited usage ignores the count", func(t *testing.T) {
		c := validCoupon()
		c.UsageLimit = 0
		c.UsageCount = 10_000
		if res := c.Evaluate(domain.Cart{SubtotalCents: 200000}, now); !res.OK {
			t.Errorf("expected ok, got %+v", res)
		}
	})

	t.Run("matching category applies", func(t *testing.T) {
		c := validCoupon()
		c.AppliesTo = domain.ScopeCategories
		c.ApplicableCategories = []string{"shoes", "bags"}
		res := c.Evaluate(domain.Cart{SubtotalCents: 200000, CategoryIDs: []string{"shirts", "bags"}}, now)
		if !res.OK {
			t.Errorf("expected ok, got %+v", res)
		}
	})
}

func TestDiscountForFixed(t *testing.T) {
	c := domain.Coupon{DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(150)}

	for _, subtotal := range []int64{0, 1, 14999, 15000, 15001, 1_000_000} {
		got := c.DiscountFor(subtotal)
		want := min(int64(15000), subtotal)
		if got != want {
			t.Errorf("DiscountFor(%d) = %d, want %d", subtotal, got, want)
		}
		if subtotal-got < 0 {
			t.Errorf("total went negative for subtotal %d", subtotal)
		}
	}
}

func TestDiscountForLargestFixedValue(t *testing.T) {
	c := domain.Coupon{
		Code:          "HUGE",
		DiscountType:  domain.DiscountFixed,
		DiscountValue: decimal.RequireFromString("9999999999.99"),
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:    time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
		AppliesTo:     domain.ScopeAll,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	for _, subtotal := range []int64{1, 100000, 999_999_999_999} {
		if got := c.DiscountFor(subtotal); got != subtotal {
			t.Errorf("DiscountFor(%d) = %d, want %d", subtotal, got, subtotal)
		}
	}
}

func TestDiscountForPercentage(t *testing.T) {
	for _, pct := range []string{"0.01", "1", "10", "33.33", "99.99", "100"} {
		c := domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: decimal.RequireFromString(pct)}
		for _, subtotal := range []int64{0, 1, 3, 999, 200000, 123457} {
			got := c.DiscountFor(subtotal)
			want := decimal.NewFromInt(subtotal).Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(0).IntPart()
			if got != want {
				t.Errorf("%s%% of %d = %d, want %d", pct, subtotal, got, want)
			}
			if got > subtotal {
				t.Errorf("%s%% of %d exceeded subtotal: %d", pct, subtotal, got)
			}
		}
	}
}
