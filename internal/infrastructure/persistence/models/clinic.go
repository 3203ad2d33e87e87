package models

import (
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The tables below belong to the surrounding clinic application. The ledger
// reads them and writes only stock levels and appointment state.

// PatientModel is the persistence model for a patient record.
type PatientModel struct {
	BaseModel
	Name  string `gorm:"type:varchar(200);not null"`
	Phone string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (PatientModel) TableName() string {
	return "patients"
}

// ToDomain converts the persistence model to the ledger's view of a patient.
func (m *PatientModel) ToDomain() *ledger.Patient {
	return &ledger.Patient{ID: m.ID, Name: m.Name}
}

// ProductModel is the persistence model for a catalog product.
type ProductModel struct {
	BaseModel
	Name          string          `gorm:"type:varchar(200);not null"`
	Price         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	StockQuantity int             `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to the ledger's view of a product.
func (m *ProductModel) ToDomain() *ledger.Product {
	return &ledger.Product{
		ID:            m.ID,
		Name:          m.Name,
		Price:         m.Price,
		StockQuantity: m.StockQuantity,
	}
}

// AppointmentModel is the persistence model for an appointment.
type AppointmentModel struct {
	BaseModel
	PatientID   uuid.UUID                `gorm:"type:uuid;not null;index"`
	ScheduledAt time.Time                `gorm:"not null"`
	Status      ledger.AppointmentStatus `gorm:"type:varchar(20);not null;default:'scheduled'"`
	InvoiceID   *uuid.UUID               `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (AppointmentModel) TableName() string {
	return "appointments"
}

// ToDomain converts the persistence model to the ledger's view of an appointment.
func (m *AppointmentModel) ToDomain() *ledger.Appointment {
	return &ledger.Appointment{
		ID:        m.ID,
		PatientID: m.PatientID,
		Status:    m.Status,
		InvoiceID: m.InvoiceID,
	}
}
