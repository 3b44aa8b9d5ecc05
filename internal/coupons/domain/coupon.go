package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/money"
	"github.com/shopspring/decimal"
)

// DiscountType selects how a coupon's value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Scope restricts which cart contents a coupon may apply to.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeCategories Scope = "categories"
	ScopeProducts   Scope = "products"
)

var (
	// ErrInvalid marks coupon definitions that break a field rule.
	ErrInvalid = errors.New("invalid coupon")

	codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)
	maxPercent  = decimal.NewFromInt(100)
)

// Coupon is a discount definition managed by administrators.
type Coupon struct {
	Code                 string
	Description          string
	DiscountType         DiscountType
	DiscountValue        decimal.Decimal
	MinimumPurchaseCents int64
	StartDate            time.Time
	ExpiryDate           time.Time
	UsageLimit           int
	UsageCount           int
	IsActive             bool
	AppliesTo            Scope
	ApplicableCategories []string
	ApplicableProducts   []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NormalizeCode trims and upper-cases a code so lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the field rules that hold for every stored coupon.
func (c Coupon) Validate() error {
	if !codePattern.MatchString(c.Code) {
		return invalid("code must be 3-32 characters of A-Z, 0-9, '_' or '-'")
	}

	switch c.DiscountType {
	case DiscountPercentage:
		if !c.DiscountValue.IsPositive() || c.DiscountValue.GreaterThan(maxPercent) {
			return invalid("percentage discount_value must be in (0, 100]")
		}
	case DiscountFixed:
		if !c.DiscountValue.IsPositive() {
			return invalid("fixed discount_value must be positive")
		}
		if errors.Is(money.Check(c.DiscountValue), money.ErrTooLarge) {
			return invalid("fixed discount_value must not exceed 9999999999.99")
		}
	default:
		return invalid("discount_type must be percentage or fixed")
	}
	if !c.DiscountValue.Equal(c.DiscountValue.Round(money.Scale)) {
		return invalid("discount_value supports at most 2 decimal places")
	}

	if c.MinimumPurchaseCents < 0 {
		return invalid("minimum_purchase must not be negative")
	}
	if c.MinimumPurchaseCents > money.MaxMinor {
		return invalid("minimum_purchase must not exceed 9999999999.99")
	}
	if c.UsageLimit < 0 {
		return invalid("usage_limit must not be negative")
	}
	if c.UsageCount < 0 {
		return invalid("usage_count must not be negative")
	}
	if c.UsageLimit > 0 && c.UsageCount > c.UsageLimit {
		return invalid("usage_limit must not be below usage_count")
	}
	if c.StartDate.IsZero() || c.ExpiryDate.IsZero() {
		return invalid("start_date and expiry_date are required")
	}
	if !c.ExpiryDate.After(c.StartDate) {
		return invalid("expiry_date must be after start_date")
	}

	switch c.AppliesTo {
	case ScopeAll:
	case ScopeCategories:
		if len(c.ApplicableCategories) == 0 {
			return invalid("applicable_categories is required when applies_to is categories")
		}
	case ScopeProducts:
		if len(c.ApplicableProducts) == 0 {
			return invalid("applicable_products is required when applies_to is products")
		}
	default:
		return invalid("applies_to must be all, categories or products")
	}

	return nil
}

// ValidateNew applies Validate plus the rules that only hold at creation time.
func (c Coupon) ValidateNew(now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.ExpiryDate.After(now) {
		return invalid("expiry_date must be in the future")
	}
	if c.UsageCount != 0 {
		return invalid("usage_count must start at zero")
	}
	return nil
}

// HasCapacity reports whether another redemption fits under the usage limit.
func (c Coupon) HasCapacity() bool {
	return c.UsageLimit == 0 || c.UsageCount < c.UsageLimit
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalid, msg)
}
