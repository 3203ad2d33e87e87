package persistence

import (
	"context"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormCreditNoteApplicationRepository implements CreditNoteApplicationRepository using GORM
type GormCreditNoteApplicationRepository struct {
	db *gorm.DB
}

// NewGormCreditNoteApplicationRepository creates a new GormCreditNoteApplicationRepository
func NewGormCreditNoteApplicationRepository(db *gorm.DB) *GormCreditNoteApplicationRepository {
	return &GormCreditNoteApplicationRepository{db: db}
}

// Create records a credit spend
func (r *GormCreditNoteApplicationRepository) Create(ctx context.Context, app *ledger.CreditNoteApplication) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(models.CreditNoteApplicationModelFromDomain(app)).Error,
		"create credit note application")
}

// FindByInvoice lists the credit spent on an invoice in the order it was applied
func (r *GormCreditNoteApplicationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]ledger.CreditNoteApplication, error) {
	return r.findAll(r.db.WithContext(ctx).Where("applied_invoice_id = ?", invoiceID))
}

// FindByCreditNote lists where a credit note was spent
func (r *GormCreditNoteApplicationRepository) FindByCreditNote(ctx context.Context, creditNoteID uuid.UUID) ([]ledger.CreditNoteApplication, error) {
	return r.findAll(r.db.WithContext(ctx).Where("credit_note_id = ?", creditNoteID))
}

func (r *GormCreditNoteApplicationRepository) findAll(query *gorm.DB) ([]ledger.CreditNoteApplication, error) {
	var appModels []models.CreditNoteApplicationModel
	if err := query.Order("created_at ASC").Find(&appModels).Error; err != nil {
		return nil, errors.Wrap(err, "find credit note applications")
	}
	return lo.Map(appModels, func(m models.CreditNoteApplicationModel, _ int) ledger.CreditNoteApplication {
		return m.ToDomain()
	}), nil
}

// DeleteByInvoice hard-deletes every application on the invoice
func (r *GormCreditNoteApplicationRepository) DeleteByInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("applied_invoice_id = ?", invoiceID).
		Delete(&models.CreditNoteApplicationModel{}).Error
	return errors.Wrapf(err, "delete credit applications of invoice %s", invoiceID)
}

// CountByInvoice counts the applications referencing the invoice
func (r *GormCreditNoteApplicationRepository) CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditNoteApplicationModel{}).
		Where("applied_invoice_id = ?", invoiceID).
		Count(&count).Error
	return count, errors.Wrapf(err, "count credit applications of invoice %s", invoiceID)
}

// Ensure GormCreditNoteApplicationRepository implements CreditNoteApplicationRepository
var _ ledger.CreditNoteApplicationRepository = (*GormCreditNoteApplicationRepository)(nil)
