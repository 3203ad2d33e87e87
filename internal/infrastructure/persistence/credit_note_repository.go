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

// GormCreditNoteRepository implements CreditNoteRepository using GORM
type GormCreditNoteRepository struct {
	db *gorm.DB
}

// NewGormCreditNoteRepository creates a new GormCreditNoteRepository
func NewGormCreditNoteRepository(db *gorm.DB) *GormCreditNoteRepository {
	return &GormCreditNoteRepository{db: db}
}

// FindByID finds a credit note by its ID
func (r *GormCreditNoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.CreditNote, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a credit note and takes a row lock until the transaction ends
func (r *GormCreditNoteRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ledger.CreditNote, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormCreditNoteRepository) find(query *gorm.DB, id uuid.UUID) (*ledger.CreditNote, error) {
	var model models.CreditNoteModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Credit note")
		}
		return nil, errors.Wrapf(err, "find credit note %s", id)
	}
	return model.ToDomain(), nil
}

// FindByPatient lists a patient's credit notes, newest first
func (r *GormCreditNoteRepository) FindByPatient(ctx context.Context, patientID uuid.UUID, onlyAvailable bool) ([]ledger.CreditNote, error) {
	query := r.db.WithContext(ctx).Where("patient_id = ?", patientID)
	if onlyAvailable {
		query = query.Where("status IN ? AND remaining_amount > 0",
			[]ledger.CreditNoteStatus{ledger.CreditNoteStatusOpen, ledger.CreditNoteStatusPartial})
	}
	return r.findAll(query.Order("created_at DESC"))
}

// FindByInvoice lists the credit notes issued from an invoice
func (r *GormCreditNoteRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]ledger.CreditNote, error) {
	return r.findAll(r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("created_at ASC"))
}

func (r *GormCreditNoteRepository) findAll(query *gorm.DB) ([]ledger.CreditNote, error) {
	var noteModels []models.CreditNoteModel
	if err := query.Find(&noteModels).Error; err != nil {
		return nil, errors.Wrap(err, "find credit notes")
	}
	return lo.Map(noteModels, func(m models.CreditNoteModel, _ int) ledger.CreditNote {
		return *m.ToDomain()
	}), nil
}

// Create inserts a new credit note
func (r *GormCreditNoteRepository) Create(ctx context.Context, note *ledger.CreditNote) error {
	return errors.Wrapf(r.db.WithContext(ctx).Create(models.CreditNoteModelFromDomain(note)).Error,
		"create credit note %s", note.CreditNo)
}

// SaveWithLock writes the mutable fields when nobody changed the note since it was read
func (r *GormCreditNoteRepository) SaveWithLock(ctx context.Context, note *ledger.CreditNote) error {
	note.Touch()
	result := r.db.WithContext(ctx).
		Model(&models.CreditNoteModel{}).
		Where("id = ? AND version = ?", note.ID, note.Version).
		Updates(map[string]interface{}{
			"status":           note.Status,
			"remaining_amount": note.RemainingAmount,
			"voided_at":        note.VoidedAt,
			"void_reason":      note.VoidReason,
			"version":          note.Version + 1,
			"updated_at":       note.UpdatedAt,
		})

	if result.Error != nil {
		return errors.Wrapf(result.Error, "save credit note %s", note.ID)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.ErrConcurrencyConflict.Code, "Credit note was modified by another transaction")
	}
	note.IncrementVersion()
	return nil
}

// Ensure GormCreditNoteRepository implements CreditNoteRepository
var _ ledger.CreditNoteRepository = (*GormCreditNoteRepository)(nil)
