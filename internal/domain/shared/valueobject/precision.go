// Package valueobject holds the numeric conventions shared by the ledger and
// the workflows: quantities carry three decimals, currency amounts two and
// unit costs four.
package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	QuantityPlaces int32 = 3
	MoneyPlaces    int32 = 2
	UnitCostPlaces int32 = 4
	PercentPlaces  int32 = 2
)

var hundred = decimal.NewFromInt(100)

// Qty rounds a quantity to ledger precision.
func Qty(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// Amount rounds a currency amount.
func Amount(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// UnitCost rounds a per-unit cost.
func UnitCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitCostPlaces)
}

// ParseQuantity parses a non-negative quantity with at most three decimals.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if err := ValidateQuantity(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateQuantity rejects negative values and values finer than 0.001.
func ValidateQuantity(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("quantity cannot be negative: %s", d)
	}
	if !d.Equal(d.Round(QuantityPlaces)) {
		return fmt.Errorf("quantity %s exceeds %d decimal places", d, QuantityPlaces)
	}
	return nil
}

// ValidateAmount rejects negative values and values finer than 0.01.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("amount cannot be negative: %s", d)
	}
	if !d.Equal(d.Round(MoneyPlaces)) {
		return fmt.Errorf("amount %s exceeds %d decimal places", d, MoneyPlaces)
	}
	return nil
}

// MarginPercent returns (price - cost) / cost * 100 rounded to two places.
// ok is false when cost is not positive.
func MarginPercent(price, cost decimal.Decimal) (margin decimal.Decimal, ok bool) {
	if !cost.IsPositive() {
		return decimal.Zero, false
	}
	return price.Sub(cost).Div(cost).Mul(hundred).Round(PercentPlaces), true
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
