package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// listOrder maps the sort keys a list endpoint accepts to table columns.
type listOrder struct {
	columns    map[string]string
	defaultKey string
}

// invoiceListOrder is the sort whitelist of the invoice list
var invoiceListOrder = listOrder{
	columns: map[string]string{
		"created_at":   "created_at",
		"updated_at":   "updated_at",
		"invoice_no":   "invoice_no",
		"total_amount": "total_amount",
		"paid_amount":  "paid_amount",
		"status":       "status",
	},
	defaultKey: "created_at",
}

// column returns the column for key, or the default column when key is not
// whitelisted.
func (o listOrder) column(key string) string {
	if col, ok := o.columns[strings.TrimSpace(key)]; ok {
		return col
	}
	return o.columns[o.defaultKey]
}

// OrderBy builds the ORDER BY clause for key and dir. Anything but "asc"
// sorts descending. Rows with equal sort values keep a stable order by id so
// pages never overlap.
func (o listOrder) OrderBy(key, dir string) clause.OrderBy {
	desc := !strings.EqualFold(strings.TrimSpace(dir), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: o.column(key)}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
