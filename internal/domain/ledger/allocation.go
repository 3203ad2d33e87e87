package ledger

import (
	"fmt"
	"sort"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Allocation maps a product to the quantity an invoice holds of it
type Allocation map[uuid.UUID]int

// AllocationOf sums the quantities of catalog items per product
func AllocationOf(items []InvoiceItem) Allocation {
	alloc := make(Allocation)
	for _, item := range items {
		if item.IsManual || item.ProductID == nil {
			continue
		}
		alloc[*item.ProductID] += item.Quantity
	}
	return alloc
}

// StockDelta is a net stock change for one product. A positive Quantity is
// taken out of stock; a negative one is returned to it.
type StockDelta struct {
	ProductID uuid.UUID
	Quantity  int
}

// DeltaTo computes next minus a for every product in either allocation,
// skipping products whose allocation did not change. Results are ordered by
// product ID so concurrent writers lock product rows in the same order.
func (a Allocation) DeltaTo(next Allocation) []StockDelta {
	keys := lo.Uniq(append(lo.Keys(a), lo.Keys(next)...))
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	deltas := make([]StockDelta, 0, len(keys))
	for _, id := range keys {
		if d := next[id] - a[id]; d != 0 {
			deltas = append(deltas, StockDelta{ProductID: id, Quantity: d})
		}
	}
	return deltas
}

// Negate returns the allocation needed to put every unit back in stock
func (a Allocation) Negate() []StockDelta {
	return a.DeltaTo(Allocation{})
}

// CheckStock verifies that the catalog items fit in current stock. Units
// already held by the invoice being edited (previous) count as available.
// Usage accumulates across lines, so two lines of the same product cannot
// together exceed what is on hand.
func CheckStock(items []InvoiceItem, products map[uuid.UUID]*Product, previous Allocation) error {
	used := make(map[uuid.UUID]int)
	for _, item := range items {
		if item.IsManual || item.ProductID == nil {
			continue
		}
		pid := *item.ProductID
		product, ok := products[pid]
		if !ok || product == nil {
			return shared.NewNotFoundError(fmt.Sprintf("Product %s", pid))
		}
		available := product.StockQuantity + previous[pid] - used[pid]
		if item.Quantity > available {
			return InsufficientStockError(product.Name, available)
		}
		used[pid] += item.Quantity
	}
	return nil
}

// InsufficientStockError builds the insufficient-stock error for a product
func InsufficientStockError(productName string, available int) error {
	if available < 0 {
		available = 0
	}
	return shared.NewDomainError(shared.ErrInsufficientStock.Code,
		fmt.Sprintf("Insufficient stock for %s. Available: %d", productName, available))
}
