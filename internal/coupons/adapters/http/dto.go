package http

import (
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/coupons/app"
	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/money"
	"github.com/shopspring/decimal"
)

type applyRequest struct {
	Code         string          `json:"code"`
	CartSubtotal decimal.Decimal `json:"cart_subtotal"`
	CartItems    []cartItem      `json:"cart_items"`
}

type cartItem struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
}

func (r applyRequest) cart() (domain.Cart, error) {
	subtotal, err := money.ParseMinor(r.CartSubtotal)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: cart_subtotal: %w", domain.ErrInvalid, err)
	}

	cart := domain.Cart{SubtotalCents: subtotal}
	for _, item := range r.CartItems {
		if item.ProductID != "" {
			cart.ProductIDs = append(cart.ProductIDs, item.ProductID)
		}
		if item.CategoryID != "" {
			cart.CategoryIDs = append(cart.CategoryIDs, item.CategoryID)
		}
	}
	return cart, nil
}

type resultResponse struct {
	OK       bool             `json:"ok"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
	Reason   domain.Reason    `json:"reason,omitempty"`
}

func toResultResponse(result domain.Result, withDiscount bool) resultResponse {
	resp := resultResponse{OK: result.OK, Reason: result.Reason}
	if result.OK && withDiscount {
		discount := money.FromMinor(result.DiscountCents)
		resp.Discount = &discount
	}
	return resp
}

type couponRequest struct {
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	DiscountType         string          `json:"discount_type"`
	DiscountValue        decimal.Decimal `json:"discount_value"`
	MinimumPurchase      decimal.Decimal `json:"minimum_purchase"`
	StartDate            time.Time       `json:"start_date"`
	ExpiryDate           time.Time       `json:"expiry_date"`
	UsageLimit           int             `json:"usage_limit"`
	IsActive             *bool           `json:"is_active"`
	AppliesTo            string          `json:"applies_to"`
	ApplicableCategories []string        `json:"applicable_categories"`
	ApplicableProducts   []string        `json:"applicable_products"`
}

func (r couponRequest) input() (app.CouponInput, error) {
	minimum, err := money.ParseMinor(r.MinimumPurchase)
	if err != nil {
		return app.CouponInput{}, fmt.Errorf("%w: minimum_purchase: %w", domain.ErrInvalid, err)
	}

	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}

	return app.CouponInput{
		Code:                 r.Code,
		Description:          r.Description,
		DiscountType:         domain.DiscountType(r.DiscountType),
		DiscountValue:        r.DiscountValue,
		MinimumPurchaseCents: minimum,
		StartDate:            r.StartDate,
		ExpiryDate:           r.ExpiryDate,
		UsageLimit:           r.UsageLimit,
		IsActive:             active,
		AppliesTo:            domain.Scope(r.AppliesTo),
		ApplicableCategories: r.ApplicableCategories,
		ApplicableProducts:   r.ApplicableProducts,
	}, nil
}

type couponResponse struct {
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	DiscountType         string          `json:"discount_type"`
	DiscountValue        decimal.Decimal `json:"discount_value"`
	MinimumPurchase      decimal.Decimal `json:"minimum_purchase"`
	StartDate            time.Time       `json:"start_date"`
	ExpiryDate           time.Time       `json:"expiry_date"`
	UsageLimit           int             `json:"usage_limit"`
	UsageCount           int             `json:"usage_count"`
	IsActive             bool            `json:"is_active"`
	AppliesTo            string          `json:"applies_to"`
	ApplicableCategories []string        `json:"applicable_categories"`
	ApplicableProducts   []string        `json:"applicable_products"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func toCouponResponse(c domain.Coupon) couponResponse {
	return couponResponse{
		Code:                 c.Code,
		Description:          c.Description,
		DiscountType:         string(c.DiscountType),
		DiscountValue:        c.DiscountValue,
		MinimumPurchase:      money.FromMinor(c.MinimumPurchaseCents),
		StartDate:            c.StartDate,
		ExpiryDate:           c.ExpiryDate,
		UsageLimit:           c.UsageLimit,
		UsageCount:           c.UsageCount,
		IsActive:             c.IsActive,
		AppliesTo:            string(c.AppliesTo),
		ApplicableCategories: c.ApplicableCategories,
		ApplicableProducts:   c.ApplicableProducts,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}
