// Package money converts between integer cents and decimal amounts.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentOf returns amountCents * rate rounded half-up to the nearest cent.
func PercentOf(amountCents int64, rate decimal.Decimal) int64 {
	if amountCents <= 0 || rate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(amountCents).Mul(rate).Round(0).IntPart()
}

// FromMajor converts a major-unit amount (dollars) to cents.
func FromMajor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromFloat converts a major-unit float, as sent by JSON clients, to cents.
func FromFloat(amount float64) int64 {
	return FromMajor(decimal.NewFromFloat(amount))
}

// ToMajor converts cents to a major-unit decimal.
func ToMajor(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Format renders cents as a fixed two-decimal string.
func Format(cents int64) string {
	return ToMajor(cents).StringFixed(2)
}
