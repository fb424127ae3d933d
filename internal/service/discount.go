package service

import (
	"github.com/shopspring/decimal"
	"github.com/tabletab/api/internal/enum"
)

var oneHundred = decimal.NewFromInt(100)

// Discount is a tagged discount specification: none, a percentage of the
// subtotal, or a fixed amount.
type Discount struct {
	Type  string // enum.DiscountTypeNone, DiscountTypePercentage or DiscountTypeFixed
	Value decimal.Decimal
}

// None reports whether no discount is specified.
func (d Discount) None() bool {
	return d.Type == enum.DiscountTypeNone
}

func (d Discount) Validate() error {
	switch d.Type {
	case enum.DiscountTypeNone:
		return nil
	case enum.DiscountTypePercentage:
		if d.Value.IsNegative() || d.Value.GreaterThan(oneHundred) {
			return ErrInvalidDiscountValue
		}
		return nil
	case enum.DiscountTypeFixed:
		if d.Value.IsNegative() {
			return ErrInvalidDiscountValue
		}
		return nil
	}
	return ErrInvalidDiscountType
}

// Amount computes the discount amount for the given subtotal. The result is
// a pure function of (type, value, subtotal), so reapplying the same spec to
// the same subtotal always yields the same final price.
func (d Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case enum.DiscountTypePercentage:
		return subtotal.Mul(d.Value).Div(oneHundred).Round(2)
	case enum.DiscountTypeFixed:
		if d.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return d.Value
	}
	return decimal.Zero
}

// Final is the payable price after the discount, clamped at zero.
func (d Discount) Final(subtotal decimal.Decimal) decimal.Decimal {
	final := subtotal.Sub(d.Amount(subtotal))
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}
