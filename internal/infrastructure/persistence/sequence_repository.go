package persistence

import (
	"context"
	"fmt"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceGenerator implements SequenceGenerator on the number_sequences table.
// Bound to a transaction it holds the counter row lock until commit, so the
// numbers it hands out are unique and strictly increasing.
type GormSequenceGenerator struct {
	db *gorm.DB
}

// NewGormSequenceGenerator creates a new GormSequenceGenerator
func NewGormSequenceGenerator(db *gorm.DB) *GormSequenceGenerator {
	return &GormSequenceGenerator{db: db}
}

// Next advances the named counter and formats the result as PREFIX-000001
func (g *GormSequenceGenerator) Next(ctx context.Context, seq ledger.Sequence) (string, error) {
	db := g.db.WithContext(ctx)

	row := models.NumberSequenceModel{Name: seq.Name, Value: 1}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value": gorm.Expr("number_sequences.value + 1"),
		}),
	}).Create(&row).Error; err != nil {
		return "", errors.Wrapf(err, "advance sequence %s", seq.Name)
	}

	var current models.NumberSequenceModel
	if err := db.First(&current, "name = ?", seq.Name).Error; err != nil {
		return "", errors.Wrapf(err, "read sequence %s", seq.Name)
	}
	return fmt.Sprintf("%s-%06d", seq.Prefix, current.Value), nil
}

// Ensure GormSequenceGenerator implements SequenceGenerator
var _ ledger.SequenceGenerator = (*GormSequenceGenerator)(nil)
