package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func orderColumns(ob clause.OrderBy) []string {
	names := make([]string, 0, len(ob.Columns))
	for _, c := range ob.Columns {
		dir := "asc"
		if c.Desc {
			dir = "desc"
		}
		names = append(names, c.Column.Name+" "+dir)
	}
	return names
}

func TestInvoiceListOrder(t *testing.T) {
	tests := []struct {
		name string
		key  string
		dir  string
		want []string
	}{
		{"defaults to newest first", "", "", []string{"created_at desc", "id desc"}},
		{"invoice number ascending", "invoice_no", "asc", []string{"invoice_no asc", "id asc"}},
		{"direction is case insensitive", "total_amount", "  ASC ", []string{"total_amount asc", "id asc"}},
		{"unknown direction sorts descending", "paid_amount", "sideways", []string{"paid_amount desc", "id desc"}},
		{"surrounding spaces are ignored", "  status ", "desc", []string{"status desc", "id desc"}},
		{"keys are case sensitive", "INVOICE_NO", "asc", []string{"created_at asc", "id asc"}},
		{"columns outside the whitelist fall back", "patient_id", "asc", []string{"created_at asc", "id asc"}},
		{"refund counters are not sortable", "refunded_amount", "desc", []string{"created_at desc", "id desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderColumns(invoiceListOrder.OrderBy(tt.key, tt.dir)))
		})
	}
}

func TestInvoiceListOrder_RejectsInjectedSQL(t *testing.T) {
	payloads := []string{
		"invoice_no; UPDATE invoices SET paid_amount = total_amount;--",
		"total_amount DESC, (SELECT remaining_amount FROM credit_notes LIMIT 1)",
		"status' OR '1'='1",
		"CASE WHEN credit_applied_amount > 0 THEN 1 ELSE 0 END",
		"invoice_no/**/;DELETE FROM credit_note_applications",
		"created_at\n; DROP TABLE credit_notes",
	}

	for i, payload := range payloads {
		ob := invoiceListOrder.OrderBy(payload, payload)
		require.Len(t, ob.Columns, 2, "payload %d", i)
		assert.Equal(t, []string{"created_at desc", "id desc"}, orderColumns(ob), "payload %q", payload)
	}
}

func TestInvoiceListOrder_DefaultIsWhitelisted(t *testing.T) {
	_, ok := invoiceListOrder.columns[invoiceListOrder.defaultKey]
	assert.True(t, ok)
}
