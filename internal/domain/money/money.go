// Package money provides the canonical currency rounding used across the
// billing engine. All persisted amounts are quantized to 2 decimal places
// with half-up rounding (half-even is deliberately not used).
package money

import "github.com/shopspring/decimal"

// Quantize rounds d to 2 decimal places, rounding halves up.
//
// decimal.Round rounds half away from zero, which for the non-negative
// amounts handled here is exactly half-up (0.125 -> 0.13).
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Cents returns the quantized amount as an exact integer number of cents.
// Amounts flowing through the allocator are always quantized first, so the
// conversion is lossless.
func Cents(d decimal.Decimal) int64 {
	return Quantize(d).Shift(2).IntPart()
}

// FromCents converts an integer cent count back to a 2-decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// IsQuantized reports whether d carries at most 2 decimal places.
func IsQuantized(d decimal.Decimal) bool {
	return d.Equal(Quantize(d))
}
