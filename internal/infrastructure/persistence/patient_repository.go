package persistence

import (
	"context"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPatientDirectory implements PatientDirectory on the patients table
type GormPatientDirectory struct {
	db *gorm.DB
}

// NewGormPatientDirectory creates a new GormPatientDirectory
func NewGormPatientDirectory(db *gorm.DB) *GormPatientDirectory {
	return &GormPatientDirectory{db: db}
}

// FindByID finds a patient by ID
func (r *GormPatientDirectory) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Patient, error) {
	var model models.PatientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Patient")
		}
		return nil, errors.Wrapf(err, "find patient %s", id)
	}
	return model.ToDomain(), nil
}

// Ensure GormPatientDirectory implements PatientDirectory
var _ ledger.PatientDirectory = (*GormPatientDirectory)(nil)
