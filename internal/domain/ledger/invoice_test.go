package ledger

import (
	"testing"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeInvoiceStatus(t *testing.T) {
	tests := []struct {
		name                                  string
		total, paid, creditApplied, refunded string
		want                                  InvoiceStatus
	}{
		{"nothing paid", "100", "0", "0", "0", InvoiceStatusUnpaid},
		{"partly paid", "100", "40", "0", "0", InvoiceStatusPartial},
		{"paid with credit", "100", "60", "40", "0", InvoiceStatusPaid},
		{"within tolerance", "100", "99.99", "0", "0", InvoiceStatusPaid},
		{"just outside tolerance", "100", "99.98", "0", "0", InvoiceStatusPartial},
		{"credit only partial", "60", "0", "40", "0", InvoiceStatusPartial},
		{"refund reduces amount owed", "85", "45", "0", "40", InvoiceStatusPaid},
		{"refund without payment stays unpaid", "85", "0", "0", "40", InvoiceStatusUnpaid},
		{"zero total unpaid", "0", "0", "0", "0", InvoiceStatusUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeInvoiceStatus(dec(tt.total), dec(tt.paid), dec(tt.creditApplied), dec(tt.refunded))
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestProducts() (uuid.UUID, map[uuid.UUID]*Product) {
	a := uuid.New()
	return a, map[uuid.UUID]*Product{
		a: {ID: a, Name: "Product A", Price: dec("50"), StockQuantity: 10},
	}
}

func TestPriceLines(t *testing.T) {
	a, products := newTestProducts()

	t.Run("catalog line takes product price and name", func(t *testing.T) {
		items, err := PriceLines([]LineItem{
			CatalogLine{ProductID: a, Quantity: 2, Discount: Discount{Value: dec("10"), Type: DiscountTypePercentage}},
		}, products)

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Product A", items[0].ProductName)
		assert.False(t, items[0].IsManual)
		assert.True(t, items[0].UnitPrice.Equal(dec("50")))
		assert.True(t, items[0].DiscountAmount.Equal(dec("10")))
		assert.True(t, items[0].Total.Equal(dec("90")))
	})

	t.Run("catalog line price override", func(t *testing.T) {
		price := dec("45")
		items, err := PriceLines([]LineItem{CatalogLine{ProductID: a, Quantity: 1, UnitPrice: &price}}, products)

		require.NoError(t, err)
		assert.True(t, items[0].Total.Equal(dec("45")))
	})

	t.Run("manual line", func(t *testing.T) {
		items, err := PriceLines([]LineItem{
			ManualLine{Description: "Consultation", UnitPrice: dec("300"), Quantity: 1},
		}, products)

		require.NoError(t, err)
		assert.True(t, items[0].IsManual)
		assert.Nil(t, items[0].ProductID)
		assert.Equal(t, "Consultation", items[0].ProductName)
	})

	t.Run("zero quantity names the product", func(t *testing.T) {
		_, err := PriceLines([]LineItem{CatalogLine{ProductID: a, Quantity: 0}}, products)

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Contains(t, err.Error(), "Product A")
	})

	t.Run("no lines", func(t *testing.T) {
		_, err := PriceLines(nil, products)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("missing product", func(t *testing.T) {
		_, err := PriceLines([]LineItem{CatalogLine{ProductID: uuid.New(), Quantity: 1}}, products)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("stored item converts back to its line variant", func(t *testing.T) {
		items, err := PriceLines([]LineItem{
			CatalogLine{ProductID: a, Quantity: 2},
			ManualLine{Description: "Dressing", UnitPrice: dec("20"), Quantity: 1},
		}, products)
		require.NoError(t, err)

		_, isCatalog := items[0].Line().(CatalogLine)
		_, isManual := items[1].Line().(ManualLine)
		assert.True(t, isCatalog)
		assert.True(t, isManual)
	})
}

func newScenarioInvoice(t *testing.T, createdBy uuid.UUID) *Invoice {
	t.Helper()
	a, products := newTestProducts()
	items, err := PriceLines([]LineItem{
		CatalogLine{ProductID: a, Quantity: 2, Discount: Discount{Value: dec("10"), Type: DiscountTypePercentage}},
	}, products)
	require.NoError(t, err)

	inv, err := NewInvoice(createdBy, "INV-000001", uuid.New(), items,
		Discount{Value: dec("5"), Type: DiscountTypeFixed}, decimal.Zero, "")
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	creator := uuid.New()

	t.Run("totals stack item and invoice discounts", func(t *testing.T) {
		inv := newScenarioInvoice(t, creator)

		assert.True(t, inv.Subtotal.Equal(dec("90")))
		assert.True(t, inv.DiscountAmount.Equal(dec("5")))
		assert.True(t, inv.TotalAmount.Equal(dec("85")))
		assert.Equal(t, InvoiceStatusUnpaid, inv.Status)
		assert.Equal(t, creator, inv.CreatedBy)
		assert.Equal(t, 1, inv.Version)
		assert.Len(t, inv.GetDomainEvents(), 1)
		for _, item := range inv.Items {
			assert.Equal(t, inv.ID, item.InvoiceID)
		}
	})

	t.Run("payment above total rejected", func(t *testing.T) {
		a, products := newTestProducts()
		items, err := PriceLines([]LineItem{CatalogLine{ProductID: a, Quantity: 1}}, products)
		require.NoError(t, err)

		_, err = NewInvoice(creator, "INV-000002", uuid.New(), items, NoDiscount(), dec("50.02"), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceed invoice total")
	})

	t.Run("full payment is paid", func(t *testing.T) {
		a, products := newTestProducts()
		items, err := PriceLines([]LineItem{CatalogLine{ProductID: a, Quantity: 1}}, products)
		require.NoError(t, err)

		inv, err := NewInvoice(creator, "INV-000003", uuid.New(), items, NoDiscount(), dec("50"), "")
		require.NoError(t, err)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
	})

	t.Run("empty invoice number", func(t *testing.T) {
		_, err := NewInvoice(creator, "", uuid.New(), nil, NoDiscount(), decimal.Zero, "")
		require.Error(t, err)
	})
}

func TestInvoice_Revise(t *testing.T) {
	inv := newScenarioInvoice(t, uuid.New())
	require.NoError(t, inv.AddRefund(dec("40")))

	t.Run("total cannot drop below refunded amount", func(t *testing.T) {
		items, err := PriceLines([]LineItem{ManualLine{Description: "Small", UnitPrice: dec("10"), Quantity: 1}}, nil)
		require.NoError(t, err)

		err = inv.Revise(items, NoDiscount(), decimal.Zero, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already refunded")
	})

	t.Run("revision replaces totals", func(t *testing.T) {
		items, err := PriceLines([]LineItem{ManualLine{Description: "Surgery", UnitPrice: dec("120"), Quantity: 1}}, nil)
		require.NoError(t, err)

		require.NoError(t, inv.Revise(items, NoDiscount(), dec("20"), "revised"))
		assert.True(t, inv.TotalAmount.Equal(dec("120")))
		assert.True(t, inv.PaidAmount.Equal(dec("20")))
		assert.Equal(t, "revised", inv.Notes)
	})
}

func TestInvoice_RecordPayment(t *testing.T) {
	t.Run("payment within outstanding", func(t *testing.T) {
		inv := newScenarioInvoice(t, uuid.New())

		require.NoError(t, inv.RecordPayment(dec("50")))
		before, after := inv.RefreshStatus()
		assert.Equal(t, InvoiceStatusUnpaid, before)
		assert.Equal(t, InvoiceStatusPartial, after)
	})

	t.Run("payment above outstanding after refund", func(t *testing.T) {
		inv := newScenarioInvoice(t, uuid.New())
		require.NoError(t, inv.AddRefund(dec("40")))

		err := inv.RecordPayment(dec("46"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "45.00")

		require.NoError(t, inv.RecordPayment(dec("45")))
		_, after := inv.RefreshStatus()
		assert.Equal(t, InvoiceStatusPaid, after)
	})

	t.Run("non-positive payment", func(t *testing.T) {
		inv := newScenarioInvoice(t, uuid.New())
		assert.Error(t, inv.RecordPayment(decimal.Zero))
	})
}

func TestInvoice_Refunds(t *testing.T) {
	inv := newScenarioInvoice(t, uuid.New())

	require.NoError(t, inv.AddRefund(dec("40")))
	assert.True(t, inv.MaxRefundable().Equal(dec("45")))

	err := inv.AddRefund(dec("45.02"))
	require.Error(t, err)

	inv.RemoveRefund(dec("40"))
	assert.True(t, inv.RefundedAmount.IsZero())
	assert.True(t, inv.MaxRefundable().Equal(dec("85")))
}

func TestInvoice_RecordStatusChange(t *testing.T) {
	creator := uuid.New()

	t.Run("change by another actor notifies the creator", func(t *testing.T) {
		inv := newScenarioInvoice(t, creator)
		require.NoError(t, inv.RecordPayment(dec("10")))
		before, _ := inv.RefreshStatus()
		inv.ClearDomainEvents()

		raised := inv.RecordStatusChange(before, Actor{ID: uuid.New(), Name: "Front desk"})

		require.True(t, raised)
		events := inv.GetDomainEvents()
		require.Len(t, events, 1)
		changed, ok := events[0].(*InvoiceStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, creator, changed.RecipientID)
		assert.Equal(t, InvoiceStatusUnpaid, changed.OldStatus)
		assert.Equal(t, InvoiceStatusPartial, changed.NewStatus)
		assert.Equal(t, "Front desk", changed.ActorName)
	})

	t.Run("creator acting alone raises nothing", func(t *testing.T) {
		inv := newScenarioInvoice(t, creator)
		require.NoError(t, inv.RecordPayment(dec("10")))
		before, _ := inv.RefreshStatus()

		assert.False(t, inv.RecordStatusChange(before, Actor{ID: creator}))
	})

	t.Run("unchanged status raises nothing", func(t *testing.T) {
		inv := newScenarioInvoice(t, creator)
		assert.False(t, inv.RecordStatusChange(inv.Status, Actor{ID: uuid.New()}))
	})
}

func TestInvoice_ChangePatient(t *testing.T) {
	inv := newScenarioInvoice(t, uuid.New())
	other := uuid.New()

	require.NoError(t, inv.ChangePatient(other))
	assert.Equal(t, other, inv.PatientID)

	require.NoError(t, inv.AddRefund(dec("10")))
	err := inv.ChangePatient(uuid.New())
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Equal(t, other, inv.PatientID)
}
