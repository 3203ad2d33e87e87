package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupLedgerTestDB opens a private in-memory database with the ledger schema.
// A single connection keeps every statement on the same in-memory database.
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))
	return db
}

func seedPatient(t *testing.T, db *gorm.DB, name string) uuid.UUID {
	t.Helper()
	patient := models.PatientModel{
		BaseModel: newBaseModel(),
		Name:      name,
	}
	require.NoError(t, db.Create(&patient).Error)
	return patient.ID
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price string, stock int) uuid.UUID {
	t.Helper()
	product := models.ProductModel{
		BaseModel:     newBaseModel(),
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(t, db.Create(&product).Error)
	return product.ID
}

func seedAppointment(t *testing.T, db *gorm.DB, patientID uuid.UUID) uuid.UUID {
	t.Helper()
	appointment := models.AppointmentModel{
		BaseModel:   newBaseModel(),
		PatientID:   patientID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Status:      ledger.AppointmentStatusScheduled,
	}
	require.NoError(t, db.Create(&appointment).Error)
	return appointment.ID
}

func stockOf(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.ProductModel
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	return product.StockQuantity
}

func newBaseModel() models.BaseModel {
	e := shared.NewBaseEntity()
	return models.BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

// newTestInvoice builds an unsaved invoice with one manual line of the given price
func newTestInvoice(t *testing.T, number string, patientID, createdBy uuid.UUID, price string) *ledger.Invoice {
	t.Helper()
	items, err := ledger.PriceLines([]ledger.LineItem{
		ledger.ManualLine{
			Description: "Consultation",
			UnitPrice:   decimal.RequireFromString(price),
			Quantity:    1,
			Discount:    ledger.NoDiscount(),
		},
	}, nil)
	require.NoError(t, err)

	inv, err := ledger.NewInvoice(createdBy, number, patientID, items, ledger.NoDiscount(), decimal.Zero, "")
	require.NoError(t, err)
	return inv
}
