// Package types provides common value types.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits stored for amounts.
const MoneyScale = 2

// ParseMoney parses a decimal string into Money.
// This is the preferred method for monetary values.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// CheckAmount reports whether m is usable as a recorded sale total:
// non-negative and with at most MoneyScale fractional digits.
func CheckAmount(m Money) error {
	if m.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}
	if !m.Equal(m.Truncate(MoneyScale)) {
		return fmt.Errorf("amount has more than %d fractional digits", MoneyScale)
	}
	return nil
}
