package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDiscount_AmountOn(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		base     string
		want     string
	}{
		{"percentage", Discount{Value: dec("10"), Type: DiscountTypePercentage}, "100", "10"},
		{"percentage rounds half up", Discount{Value: dec("12.5"), Type: DiscountTypePercentage}, "33.33", "4.17"},
		{"fixed below base", Discount{Value: dec("5"), Type: DiscountTypeFixed}, "90", "5"},
		{"fixed clamps to base", Discount{Value: dec("150"), Type: DiscountTypeFixed}, "90", "90"},
		{"empty type is fixed", Discount{Value: dec("7")}, "90", "7"},
		{"zero base", Discount{Value: dec("10"), Type: DiscountTypePercentage}, "0", "0"},
		{"zero discount", NoDiscount(), "90", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.discount.AmountOn(dec(tt.base))
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDiscount_Validate(t *testing.T) {
	t.Run("negative rejected", func(t *testing.T) {
		err := Discount{Value: dec("-1"), Type: DiscountTypeFixed}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be negative")
	})

	t.Run("percentage above 100 rejected", func(t *testing.T) {
		err := Discount{Value: dec("100.5"), Type: DiscountTypePercentage}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed 100")
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		err := Discount{Value: dec("1"), Type: "bogus"}.Validate()
		require.Error(t, err)
	})

	t.Run("100 percent allowed", func(t *testing.T) {
		assert.NoError(t, Discount{Value: dec("100"), Type: DiscountTypePercentage}.Validate())
	})
}

func TestCalculateLine(t *testing.T) {
	amounts := CalculateLine(2, dec("50"), Discount{Value: dec("10"), Type: DiscountTypePercentage})

	assert.True(t, amounts.Subtotal.Equal(dec("100")))
	assert.True(t, amounts.DiscountAmount.Equal(dec("10")))
	assert.True(t, amounts.Total.Equal(dec("90")))
}

func TestCalculateTotals(t *testing.T) {
	t.Run("invoice discount stacks after item discounts", func(t *testing.T) {
		totals := CalculateTotals([]decimal.Decimal{dec("90")}, Discount{Value: dec("5"), Type: DiscountTypeFixed})

		assert.True(t, totals.Subtotal.Equal(dec("90")))
		assert.True(t, totals.DiscountAmount.Equal(dec("5")))
		assert.True(t, totals.Total.Equal(dec("85")))
	})

	t.Run("fixed discount larger than subtotal clamps to zero total", func(t *testing.T) {
		totals := CalculateTotals([]decimal.Decimal{dec("30"), dec("20")}, Discount{Value: dec("80"), Type: DiscountTypeFixed})

		assert.True(t, totals.Subtotal.Equal(dec("50")))
		assert.True(t, totals.DiscountAmount.Equal(dec("50")))
		assert.True(t, totals.Total.IsZero())
	})

	t.Run("total equals subtotal minus discount", func(t *testing.T) {
		totals := CalculateTotals([]decimal.Decimal{dec("19.99"), dec("5.01")}, Discount{Value: dec("15"), Type: DiscountTypePercentage})

		assert.True(t, totals.Total.Equal(totals.Subtotal.Sub(totals.DiscountAmount)))
		assert.True(t, totals.Total.Equal(dec("21.25")))
	})
}
