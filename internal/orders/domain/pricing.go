package domain

import (
	"github.com/dejobratic/storefront/internal/money"
	"github.com/shopspring/decimal"
)

// Pricing holds the checkout charges applied on top of the discounted subtotal.
type Pricing struct {
	TaxRatePercent             decimal.Decimal
	ShippingFeeCents           int64
	FreeShippingThresholdCents int64
}

// Totals is the money breakdown persisted on an order.
type Totals struct {
	SubtotalCents int64
	DiscountCents int64
	TaxCents      int64
	ShippingCents int64
	TotalCents    int64
}

// Compute derives tax, shipping and total. Tax is charged on the discounted
// subtotal; shipping is waived once the discounted subtotal reaches the
// threshold, and a zero threshold never waives it.
func (p Pricing) Compute(subtotalCents, discountCents int64) Totals {
	taxable := subtotalCents - discountCents

	tax := money.Percent(taxable, p.TaxRatePercent)
	if tax < 0 {
		tax = 0
	}

	shipping := p.ShippingFeeCents
	if p.FreeShippingThresholdCents > 0 && taxable >= p.FreeShippingThresholdCents {
		shipping = 0
	}

	return Totals{
		SubtotalCents: subtotalCents,
		DiscountCents: discountCents,
		TaxCents:      tax,
		ShippingCents: shipping,
		TotalCents:    taxable + tax + shipping,
	}
}
