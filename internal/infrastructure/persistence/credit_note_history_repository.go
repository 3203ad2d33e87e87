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

// GormCreditNoteHistoryRepository implements CreditNoteHistoryRepository using GORM.
// Entries are only ever inserted.
type GormCreditNoteHistoryRepository struct {
	db *gorm.DB
}

// NewGormCreditNoteHistoryRepository creates a new GormCreditNoteHistoryRepository
func NewGormCreditNoteHistoryRepository(db *gorm.DB) *GormCreditNoteHistoryRepository {
	return &GormCreditNoteHistoryRepository{db: db}
}

// Append inserts an audit entry
func (r *GormCreditNoteHistoryRepository) Append(ctx context.Context, entry *ledger.CreditNoteHistory) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(models.CreditNoteHistoryModelFromDomain(entry)).Error,
		"append credit note history")
}

// FindByCreditNote returns the audit trail of a credit note, oldest first
func (r *GormCreditNoteHistoryRepository) FindByCreditNote(ctx context.Context, creditNoteID uuid.UUID) ([]ledger.CreditNoteHistory, error) {
	var entries []models.CreditNoteHistoryModel
	if err := r.db.WithContext(ctx).
		Where("credit_note_id = ?", creditNoteID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, errors.Wrapf(err, "find history of credit note %s", creditNoteID)
	}
	return lo.Map(entries, func(m models.CreditNoteHistoryModel, _ int) ledger.CreditNoteHistory {
		return m.ToDomain()
	}), nil
}

// Ensure GormCreditNoteHistoryRepository implements CreditNoteHistoryRepository
var _ ledger.CreditNoteHistoryRepository = (*GormCreditNoteHistoryRepository)(nil)
