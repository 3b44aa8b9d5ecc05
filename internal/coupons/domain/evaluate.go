package domain

import (
	"time"

	"github.com/dejobratic/storefront/internal/money"
)

// Reason names why a coupon could not be applied.
type Reason string

const (
	ReasonNotFound             Reason = "NotFound"
	ReasonInactive             Reason = "Inactive"
	ReasonExpired              Reason = "Expired"
	ReasonNotYetStarted        Reason = "NotYetStarted"
	ReasonUsageLimitReached    Reason = "UsageLimitReached"
	ReasonBelowMinimumPurchase Reason = "BelowMinimumPurchase"
	ReasonNotApplicable        Reason = "NotApplicable"
)

// Cart is the part of a shopping cart a coupon is checked against.
type Cart struct {
	SubtotalCents int64
	CategoryIDs   []string
	ProductIDs    []string
}

// Result is the outcome of evaluating a coupon. Rejections are values, not errors.
type Result struct {
	OK            bool
	DiscountCents int64
	Reason        Reason
}

// Accept builds a successful Result.
func Accept(discountCents int64) Result {
	return Result{OK: true, DiscountCents: discountCents}
}

// Reject builds a failed Result.
func Reject(reason Reason) Result {
	return Result{Reason: reason}
}

// Evaluate runs the validation sequence against a cart. The first failing check wins.
func (c Coupon) Evaluate(cart Cart, now time.Time) Result {
	if reason := c.Redeemable(now); reason != "" {
		return Reject(reason)
	}
	if cart.SubtotalCents < c.MinimumPurchaseCents {
		return Reject(ReasonBelowMinimumPurchase)
	}
	if !c.appliesTo(cart) {
		return Reject(ReasonNotApplicable)
	}
	return Accept(c.DiscountFor(cart.SubtotalCents))
}

// Redeemable runs the cart-independent checks: active flag, validity window
// and remaining slots. An empty Reason means a slot may be taken at now.
func (c Coupon) Redeemable(now time.Time) Reason {
	switch {
	case !c.IsActive:
		return ReasonInactive
	case now.Before(c.StartDate):
		return ReasonNotYetStarted
	case now.After(c.ExpiryDate):
		return ReasonExpired
	case !c.HasCapacity():
		return ReasonUsageLimitReached
	}
	return ""
}

// DiscountFor computes the discount for a subtotal. The result never exceeds the subtotal.
func (c Coupon) DiscountFor(subtotalCents int64) int64 {
	if subtotalCents <= 0 {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case DiscountPercentage:
		discount = money.Percent(subtotalCents, c.DiscountValue)
	case DiscountFixed:
		discount = money.ToMinor(c.DiscountValue)
	}

	return min(max(discount, 0), subtotalCents)
}

func (c Coupon) appliesTo(cart Cart) bool {
	switch c.AppliesTo {
	case ScopeCategories:
		return intersects(c.ApplicableCategories, cart.CategoryIDs)
	case ScopeProducts:
		return intersects(c.ApplicableProducts, cart.ProductIDs)
	default:
		return true
	}
}

func intersects(allowed, present []string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	for _, id := range present {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
