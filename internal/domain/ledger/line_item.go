package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one requested invoice line. It is either a CatalogLine or a
// ManualLine; the unexported marker keeps the set closed.
type LineItem interface {
	isLineItem()
	// Qty returns the requested quantity
	Qty() int
	// LineDiscount returns the item-level discount
	LineDiscount() Discount
}

// CatalogLine bills a product from the catalog. A nil UnitPrice means the
// product's current price is used.
type CatalogLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice *decimal.Decimal
	Discount  Discount
}

func (CatalogLine) isLineItem() {}

// Qty returns the requested quantity
func (l CatalogLine) Qty() int { return l.Quantity }

// LineDiscount returns the item-level discount
func (l CatalogLine) LineDiscount() Discount { return l.Discount }

// ManualLine bills a free-text service or item with no stock tracking
type ManualLine struct {
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
	Discount    Discount
}

func (ManualLine) isLineItem() {}

// Qty returns the requested quantity
func (l ManualLine) Qty() int { return l.Quantity }

// LineDiscount returns the item-level discount
func (l ManualLine) LineDiscount() Discount { return l.Discount }

// InvoiceItem is a persisted, priced invoice line. ProductName and UnitPrice
// are snapshots taken when the line was written.
type InvoiceItem struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	ProductID      *uuid.UUID
	ProductName    string
	Quantity       int
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	IsManual       bool
	CreatedAt      time.Time
}

// Line converts the stored item back into its LineItem variant
func (i InvoiceItem) Line() LineItem {
	discount := Discount{Value: i.Discount, Type: i.DiscountType}
	if i.IsManual || i.ProductID == nil {
		return ManualLine{
			Description: i.ProductName,
			UnitPrice:   i.UnitPrice,
			Quantity:    i.Quantity,
			Discount:    discount,
		}
	}
	price := i.UnitPrice
	return CatalogLine{
		ProductID: *i.ProductID,
		Quantity:  i.Quantity,
		UnitPrice: &price,
		Discount:  discount,
	}
}

// PriceLines validates the requested lines and turns them into priced
// invoice items. products must contain every product referenced by a
// CatalogLine.
func PriceLines(lines []LineItem, products map[uuid.UUID]*Product) ([]InvoiceItem, error) {
	if len(lines) == 0 {
		return nil, shared.NewValidationError("Invoice must have at least one item")
	}

	items := make([]InvoiceItem, 0, len(lines))
	now := time.Now()
	for _, line := range lines {
		var (
			name      string
			unitPrice decimal.Decimal
			productID *uuid.UUID
			manual    bool
		)

		switch l := line.(type) {
		case CatalogLine:
			product, ok := products[l.ProductID]
			if !ok || product == nil {
				return nil, shared.NewNotFoundError(fmt.Sprintf("Product %s", l.ProductID))
			}
			name = product.Name
			unitPrice = product.Price
			if l.UnitPrice != nil {
				unitPrice = *l.UnitPrice
			}
			id := l.ProductID
			productID = &id
		case ManualLine:
			name = strings.TrimSpace(l.Description)
			if name == "" {
				return nil, shared.NewValidationError("Manual item requires a description")
			}
			unitPrice = l.UnitPrice
			manual = true
		default:
			return nil, shared.NewValidationError(fmt.Sprintf("Unsupported line item %T", line))
		}

		if line.Qty() <= 0 {
			return nil, shared.NewValidationError(fmt.Sprintf("Invalid quantity for %s", name))
		}
		if unitPrice.IsNegative() {
			return nil, shared.NewValidationError(fmt.Sprintf("Invalid unit price for %s", name))
		}
		discount := line.LineDiscount().Normalized()
		if err := discount.Validate(); err != nil {
			return nil, shared.NewValidationError(fmt.Sprintf("%s: %s", name, err.Error()))
		}

		amounts := CalculateLine(line.Qty(), unitPrice, discount)
		items = append(items, InvoiceItem{
			ID:             uuid.New(),
			ProductID:      productID,
			ProductName:    name,
			Quantity:       line.Qty(),
			UnitPrice:      unitPrice,
			Discount:       discount.Value,
			DiscountType:   discount.Type,
			DiscountAmount: amounts.DiscountAmount,
			Total:          amounts.Total,
			IsManual:       manual,
			CreatedAt:      now,
		})
	}
	return items, nil
}
