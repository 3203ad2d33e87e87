package ledger

import (
	"fmt"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used for every money comparison in the ledger.
var Epsilon = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// Round2 rounds a money amount half-up to two decimals
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DiscountType distinguishes percentage from fixed-amount discounts
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// IsValid checks if the discount type is known
func (t DiscountType) IsValid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

// Discount is a raw discount as entered on a line or on the invoice
type Discount struct {
	Value decimal.Decimal
	Type  DiscountType
}

// NoDiscount is a zero fixed discount
func NoDiscount() Discount {
	return Discount{Value: decimal.Zero, Type: DiscountTypeFixed}
}

// Normalized returns the discount with an empty type defaulted to fixed
func (d Discount) Normalized() Discount {
	if d.Type == "" {
		d.Type = DiscountTypeFixed
	}
	return d
}

// Validate rejects negative values, unknown types and percentages above 100
func (d Discount) Validate() error {
	d = d.Normalized()
	if !d.Type.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("Invalid discount type: %s", d.Type))
	}
	if d.Value.IsNegative() {
		return shared.NewValidationError("Discount cannot be negative")
	}
	if d.Type == DiscountTypePercentage && d.Value.GreaterThan(hundred) {
		return shared.NewValidationError("Percentage discount cannot exceed 100")
	}
	return nil
}

// AmountOn computes the discount taken from base. A fixed discount never
// exceeds base.
func (d Discount) AmountOn(base decimal.Decimal) decimal.Decimal {
	d = d.Normalized()
	if base.LessThanOrEqual(decimal.Zero) || d.Value.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if d.Type == DiscountTypePercentage {
		return Round2(base.Mul(d.Value).Div(hundred))
	}
	return Round2(decimal.Min(d.Value, base))
}

// LineAmounts holds the computed money values of one invoice line
type LineAmounts struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// CalculateLine computes subtotal, discount and total for a line
func CalculateLine(quantity int, unitPrice decimal.Decimal, discount Discount) LineAmounts {
	subtotal := Round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	discountAmount := discount.AmountOn(subtotal)
	return LineAmounts{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Total:          subtotal.Sub(discountAmount),
	}
}

// InvoiceTotals holds the computed money values of a whole invoice
type InvoiceTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// CalculateTotals applies the invoice-level discount on top of the sum of
// line totals (item discounts are already inside each line total).
func CalculateTotals(lineTotals []decimal.Decimal, discount Discount) InvoiceTotals {
	subtotal := lo.Reduce(lineTotals, func(acc decimal.Decimal, t decimal.Decimal, _ int) decimal.Decimal {
		return acc.Add(t)
	}, decimal.Zero)
	discountAmount := discount.AmountOn(subtotal)
	total := decimal.Max(decimal.Zero, subtotal.Sub(discountAmount))
	return InvoiceTotals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Total:          total,
	}
}

// WithinTolerance reports whether a <= b + Epsilon
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.LessThanOrEqual(b.Add(Epsilon))
}
