// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Parsing and percentage math go through
// shopspring/decimal so no value ever passes through a float.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var maxAmount = decimal.New(1, 8)

// ParseAmount converts a form value into Money.
//
// It accepts a dot or, when no dot is present, a comma as decimal separator.
// Values with more than 2 decimal places or more than 8 integer digits are
// rejected rather than rounded. Negative values are accepted.
//
// Examples:
//	ParseAmount("12.50") -> 1250
//	ParseAmount("12,5")  -> 1250
//	ParseAmount("12.505") -> ErrAmountPrecision
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return Money{}, ErrAmountPrecision
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return Money{}, ErrAmountTooLarge
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two decimals, e.g. "12.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}
