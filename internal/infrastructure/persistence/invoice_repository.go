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
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds an invoice and takes a row lock until the transaction ends
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormInvoiceRepository) find(query *gorm.DB, id uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	if err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Invoice")
		}
		return nil, errors.Wrapf(err, "find invoice %s", id)
	}
	return model.ToDomain(), nil
}

// List finds invoices matching the filter and the total number of matches
func (r *GormInvoiceRepository) List(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, int64, error) {
	page := filter.Filter.Normalize()

	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count invoices")
	}

	var invoiceModels []models.InvoiceModel
	if err := r.applyFilter(r.db.WithContext(ctx), filter).
		Preload("Items").
		Clauses(invoiceListOrder.OrderBy(page.OrderBy, page.OrderDir)).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list invoices")
	}

	invoices := lo.Map(invoiceModels, func(m models.InvoiceModel, _ int) ledger.Invoice {
		return *m.ToDomain()
	})
	return invoices, total, nil
}

// applyFilter applies filter conditions to query
func (r *GormInvoiceRepository) applyFilter(query *gorm.DB, filter ledger.InvoiceFilter) *gorm.DB {
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	return query
}

// Create inserts the invoice header and its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return errors.Wrapf(r.db.WithContext(ctx).Create(model).Error, "create invoice %s", invoice.InvoiceNo)
}

// SaveWithLock updates the invoice header when nobody changed it since it was
// read. Items are written separately through ReplaceItems.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *ledger.Invoice) error {
	invoice.Touch()
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]interface{}{
			"appointment_id":        invoice.AppointmentID,
			"subtotal":              invoice.Subtotal,
			"discount":              invoice.Discount,
			"discount_type":         invoice.DiscountType,
			"discount_amount":       invoice.DiscountAmount,
			"total_amount":          invoice.TotalAmount,
			"paid_amount":           invoice.PaidAmount,
			"credit_applied_amount": invoice.CreditAppliedAmount,
			"refunded_amount":       invoice.RefundedAmount,
			"status":                invoice.Status,
			"notes":                 invoice.Notes,
			"version":               invoice.Version + 1,
			"updated_at":            invoice.UpdatedAt,
		})

	if result.Error != nil {
		return errors.Wrapf(result.Error, "save invoice %s", invoice.ID)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "Invoice was modified by another transaction")
	}
	invoice.IncrementVersion()
	return nil
}

// ReplaceItems deletes the stored items of an invoice and inserts items
func (r *GormInvoiceRepository) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []ledger.InvoiceItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return errors.Wrapf(err, "clear items of invoice %s", invoiceID)
	}
	if len(items) == 0 {
		return nil
	}
	itemModels := models.InvoiceItemModelsFromDomain(items)
	return errors.Wrapf(db.Create(&itemModels).Error, "insert items of invoice %s", invoiceID)
}

// Delete removes the invoice items and then the invoice
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return errors.Wrapf(err, "delete items of invoice %s", id)
	}
	result := db.Delete(&models.InvoiceModel{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "delete invoice %s", id)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("Invoice")
	}
	return nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
