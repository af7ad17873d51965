// Package types holds value types shared by the billing core: money, quantities,
// billing periods and calendar days.
package types

import (
	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the number of fractional digits kept on amounts and rates.
	MoneyScale = 2
	// QuantityScale is the number of fractional digits kept on liters.
	QuantityScale = 3
)

// Money is an exact decimal amount.
type Money = decimal.Decimal

// Liters is an exact decimal quantity of milk.
type Liters = decimal.Decimal

// MustDecimal parses s and panics on error. Use only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Amount computes quantity * rate rounded to MoneyScale.
func Amount(quantity Liters, rate Money) Money {
	return quantity.Mul(rate).Round(MoneyScale)
}

// FitsScale reports whether d has no significant digits beyond scale.
func FitsScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}

// ProjectedQuantity is days * dailyQuantity.
func ProjectedQuantity(days int, dailyQuantity Liters) Liters {
	return dailyQuantity.Mul(decimal.NewFromInt(int64(days)))
}
