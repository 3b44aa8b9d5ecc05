// Package money converts between decimal currency amounts and the integer
// minor units (cents, paise) used for persistence.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	// Scale is the number of decimal places kept for every stored amount.
	Scale = 2
	// MaxMinor is the largest amount accepted anywhere, 9,999,999,999.99 in
	// major units. It matches NUMERIC(12,2) and keeps sums of bounded line
	// totals far from the int64 limit.
	MaxMinor int64 = 999_999_999_999
)

var (
	ErrNegative   = errors.New("amount must not be negative")
	ErrTooPrecise = errors.New("amount has more than 2 decimal places")
	ErrTooLarge   = errors.New("amount exceeds 9999999999.99")
	hundred       = decimal.NewFromInt(100)
	maxMajor      = decimal.New(MaxMinor, -Scale)
)

// ToMinor converts a major-unit amount to minor units, rounding half away from
// zero. Callers pass amounts already checked by ParseMinor or Check.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(Scale).Round(0).IntPart()
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// ParseMinor validates an inbound amount and converts it to minor units.
func ParseMinor(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrNegative
	}
	if !d.Equal(d.Round(Scale)) {
		return 0, ErrTooPrecise
	}
	if d.GreaterThan(maxMajor) {
		return 0, ErrTooLarge
	}
	return ToMinor(d), nil
}

// Check reports whether d could be stored as an amount.
func Check(d decimal.Decimal) error {
	_, err := ParseMinor(d)
	return err
}

// Percent returns round(minor * pct / 100) in minor units.
func Percent(minor int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(minor).Mul(pct).Div(hundred).Round(0).IntPart()
}
