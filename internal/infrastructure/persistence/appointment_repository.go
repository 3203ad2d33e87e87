package persistence

import (
	"context"
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAppointmentBook implements AppointmentBook on the appointments table
type GormAppointmentBook struct {
	db *gorm.DB
}

// NewGormAppointmentBook creates a new GormAppointmentBook
func NewGormAppointmentBook(db *gorm.DB) *GormAppointmentBook {
	return &GormAppointmentBook{db: db}
}

// FindByID finds an appointment by ID
func (r *GormAppointmentBook) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Appointment, error) {
	var model models.AppointmentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Appointment")
		}
		return nil, errors.Wrapf(err, "find appointment %s", id)
	}
	return model.ToDomain(), nil
}

// MarkCompleted completes the appointment and links the invoice that billed it
func (r *GormAppointmentBook) MarkCompleted(ctx context.Context, id, invoiceID uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":     ledger.AppointmentStatusCompleted,
		"invoice_id": invoiceID,
	})
}

// MarkScheduled reverts the appointment to scheduled and clears its invoice link
func (r *GormAppointmentBook) MarkScheduled(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":     ledger.AppointmentStatusScheduled,
		"invoice_id": nil,
	})
}

func (r *GormAppointmentBook) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.AppointmentModel{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update appointment %s", id)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("Appointment")
	}
	return nil
}

// Ensure GormAppointmentBook implements AppointmentBook
var _ ledger.AppointmentBook = (*GormAppointmentBook)(nil)
