// Package money converts between integer minor units (the only representation used inside
// the ledger and business logic) and decimal major units shown to users, stored in
// transaction rows and reported by payment providers.
//
// Conversion into minor units uses banker's rounding at two decimal places.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the platform settles in.
const Currency = "ETB"

const minorExponent = 2

var ErrInvalidAmount = errors.New("invalid amount")

// ToMinor converts a major-unit decimal to minor units.
func ToMinor(major decimal.Decimal) int64 {
	return major.Shift(minorExponent).RoundBank(0).IntPart()
}

// ExactMinor converts a major-unit decimal that must already be representable in minor
// units. Amounts reported by payment providers go through here so that 12.005 never
// settles a 12.00 deposit.
func ExactMinor(major decimal.Decimal) (int64, error) {
	shifted := major.Shift(minorExponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, major.String(), minorExponent)
	}
	return shifted.IntPart(), nil
}

// ToMajor converts minor units to a major-unit decimal with two places.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExponent)
}

// Format renders minor units as a fixed two-place major-unit string, e.g. 150 -> "1.50".
func Format(minor int64) string {
	return ToMajor(minor).StringFixed(minorExponent)
}

// ParseMajor parses a major-unit string such as "12.5" into minor units.
func ParseMajor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ToMinor(d), nil
}

// PositiveMinor converts a major-unit decimal and rejects zero or negative results.
func PositiveMinor(major decimal.Decimal) (int64, error) {
	minor := ToMinor(major)
	if minor <= 0 {
		return 0, ErrInvalidAmount
	}
	return minor, nil
}
