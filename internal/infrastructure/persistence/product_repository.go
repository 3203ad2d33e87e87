package persistence

import (
	"context"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormProductCatalog implements ProductCatalog on the products table
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// FindByIDs returns the products that exist among ids, keyed by ID
func (r *GormProductCatalog) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*ledger.Product{}, nil
	}
	var productModels []models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", lo.Uniq(ids)).
		Find(&productModels).Error; err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	products := make(map[uuid.UUID]*ledger.Product, len(productModels))
	for i := range productModels {
		products[productModels[i].ID] = productModels[i].ToDomain()
	}
	return products, nil
}

// AdjustStock removes quantity units from stock, or returns them when quantity
// is negative. Removal is a single conditional UPDATE so concurrent writers
// can never push stock below zero.
func (r *GormProductCatalog) AdjustStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity == 0 {
		return nil
	}

	query := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", productID)
	if quantity > 0 {
		query = query.Where("stock_quantity >= ?", quantity)
	}
	result := query.UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if result.Error != nil {
		return errors.Wrapf(result.Error, "adjust stock of product %s", productID)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var product models.ProductModel
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError("Product " + productID.String())
		}
		return errors.Wrapf(err, "read stock of product %s", productID)
	}
	return ledger.InsufficientStockError(product.Name, product.StockQuantity)
}

// Ensure GormProductCatalog implements ProductCatalog
var _ ledger.ProductCatalog = (*GormProductCatalog)(nil)
