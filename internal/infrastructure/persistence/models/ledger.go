package models

import (
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	OwnedAggregateModel
	InvoiceNo           string               `gorm:"type:varchar(20);not null;uniqueIndex"`
	PatientID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	AppointmentID       *uuid.UUID           `gorm:"type:uuid;index"`
	Subtotal            decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Discount            decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountType        ledger.DiscountType  `gorm:"type:varchar(20);not null;default:'fixed'"`
	DiscountAmount      decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	PaidAmount          decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	CreditAppliedAmount decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	RefundedAmount      decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Status              ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'unpaid';index"`
	Notes               string               `gorm:"type:text"`
	Items               []InvoiceItemModel   `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	return &ledger.Invoice{
		OwnedAggregateRoot:  m.ToOwnedAggregateRoot(),
		InvoiceNo:           m.InvoiceNo,
		PatientID:           m.PatientID,
		AppointmentID:       m.AppointmentID,
		Items:               lo.Map(m.Items, func(it InvoiceItemModel, _ int) ledger.InvoiceItem { return it.ToDomain() }),
		Subtotal:            m.Subtotal,
		Discount:            m.Discount,
		DiscountType:        m.DiscountType,
		DiscountAmount:      m.DiscountAmount,
		TotalAmount:         m.TotalAmount,
		PaidAmount:          m.PaidAmount,
		CreditAppliedAmount: m.CreditAppliedAmount,
		RefundedAmount:      m.RefundedAmount,
		Status:              m.Status,
		Notes:               m.Notes,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *ledger.Invoice) {
	m.FromDomainOwnedAggregateRoot(inv.OwnedAggregateRoot)
	m.InvoiceNo = inv.InvoiceNo
	m.PatientID = inv.PatientID
	m.AppointmentID = inv.AppointmentID
	m.Subtotal = inv.Subtotal
	m.Discount = inv.Discount
	m.DiscountType = inv.DiscountType
	m.DiscountAmount = inv.DiscountAmount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.CreditAppliedAmount = inv.CreditAppliedAmount
	m.RefundedAmount = inv.RefundedAmount
	m.Status = inv.Status
	m.Notes = inv.Notes
	m.Items = InvoiceItemModelsFromDomain(inv.Items)
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for an invoice line.
type InvoiceItemModel struct {
	ID             uuid.UUID           `gorm:"type:uuid;primary_key"`
	InvoiceID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	ProductID      *uuid.UUID          `gorm:"type:uuid;index"`
	ProductName    string              `gorm:"type:varchar(200);not null"`
	Quantity       int                 `gorm:"not null"`
	UnitPrice      decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Discount       decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountType   ledger.DiscountType `gorm:"type:varchar(20);not null;default:'fixed'"`
	DiscountAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	Total          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	IsManual       bool                `gorm:"not null;default:false"`
	CreatedAt      time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() ledger.InvoiceItem {
	return ledger.InvoiceItem{
		ID:             m.ID,
		InvoiceID:      m.InvoiceID,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		Quantity:       m.Quantity,
		UnitPrice:      m.UnitPrice,
		Discount:       m.Discount,
		DiscountType:   m.DiscountType,
		DiscountAmount: m.DiscountAmount,
		Total:          m.Total,
		IsManual:       m.IsManual,
		CreatedAt:      m.CreatedAt,
	}
}

// InvoiceItemModelsFromDomain converts domain items to persistence models.
func InvoiceItemModelsFromDomain(items []ledger.InvoiceItem) []InvoiceItemModel {
	return lo.Map(items, func(it ledger.InvoiceItem, _ int) InvoiceItemModel {
		return InvoiceItemModel{
			ID:             it.ID,
			InvoiceID:      it.InvoiceID,
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			Discount:       it.Discount,
			DiscountType:   it.DiscountType,
			DiscountAmount: it.DiscountAmount,
			Total:          it.Total,
			IsManual:       it.IsManual,
			CreatedAt:      it.CreatedAt,
		}
	})
}

// CreditNoteModel is the persistence model for the CreditNote aggregate root.
type CreditNoteModel struct {
	AggregateModel
	CreditNo        string                  `gorm:"type:varchar(20);not null;uniqueIndex"`
	InvoiceID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	PatientID       uuid.UUID               `gorm:"type:uuid;not null;index"`
	Type            ledger.CreditNoteType   `gorm:"type:varchar(20);not null"`
	Status          ledger.CreditNoteStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	TotalAmount     decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	RemainingAmount decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Reason          string                  `gorm:"type:text"`
	Notes           string                  `gorm:"type:text"`
	IssuedBy        uuid.UUID               `gorm:"type:uuid;not null"`
	VoidedAt        *time.Time
	VoidReason      string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (CreditNoteModel) TableName() string {
	return "credit_notes"
}

// ToDomain converts the persistence model to a domain CreditNote.
func (m *CreditNoteModel) ToDomain() *ledger.CreditNote {
	return &ledger.CreditNote{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CreditNo:          m.CreditNo,
		InvoiceID:         m.InvoiceID,
		PatientID:         m.PatientID,
		Type:              m.Type,
		Status:            m.Status,
		TotalAmount:       m.TotalAmount,
		RemainingAmount:   m.RemainingAmount,
		Reason:            m.Reason,
		Notes:             m.Notes,
		IssuedBy:          m.IssuedBy,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain CreditNote.
func (m *CreditNoteModel) FromDomain(cn *ledger.CreditNote) {
	m.FromDomainAggregateRoot(cn.BaseAggregateRoot)
	m.CreditNo = cn.CreditNo
	m.InvoiceID = cn.InvoiceID
	m.PatientID = cn.PatientID
	m.Type = cn.Type
	m.Status = cn.Status
	m.TotalAmount = cn.TotalAmount
	m.RemainingAmount = cn.RemainingAmount
	m.Reason = cn.Reason
	m.Notes = cn.Notes
	m.IssuedBy = cn.IssuedBy
	m.VoidedAt = cn.VoidedAt
	m.VoidReason = cn.VoidReason
}

// CreditNoteModelFromDomain creates a new persistence model from a domain CreditNote.
func CreditNoteModelFromDomain(cn *ledger.CreditNote) *CreditNoteModel {
	m := &CreditNoteModel{}
	m.FromDomain(cn)
	return m
}

// CreditNoteApplicationModel is the persistence model for a credit spend.
type CreditNoteApplicationModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	CreditNoteID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	AppliedInvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	AppliedAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AppliedBy        uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CreditNoteApplicationModel) TableName() string {
	return "credit_note_applications"
}

// ToDomain converts the persistence model to a domain CreditNoteApplication.
func (m *CreditNoteApplicationModel) ToDomain() ledger.CreditNoteApplication {
	return ledger.CreditNoteApplication{
		ID:               m.ID,
		CreditNoteID:     m.CreditNoteID,
		AppliedInvoiceID: m.AppliedInvoiceID,
		AppliedAmount:    m.AppliedAmount,
		AppliedBy:        m.AppliedBy,
		CreatedAt:        m.CreatedAt,
	}
}

// CreditNoteApplicationModelFromDomain creates a new persistence model from a domain application.
func CreditNoteApplicationModelFromDomain(app *ledger.CreditNoteApplication) *CreditNoteApplicationModel {
	return &CreditNoteApplicationModel{
		ID:               app.ID,
		CreditNoteID:     app.CreditNoteID,
		AppliedInvoiceID: app.AppliedInvoiceID,
		AppliedAmount:    app.AppliedAmount,
		AppliedBy:        app.AppliedBy,
		CreatedAt:        app.CreatedAt,
	}
}

// CreditNoteHistoryModel is the persistence model for a credit note audit entry.
type CreditNoteHistoryModel struct {
	ID           uuid.UUID              `gorm:"type:uuid;primary_key"`
	CreditNoteID uuid.UUID              `gorm:"type:uuid;not null;index"`
	Action       ledger.HistoryAction   `gorm:"type:varchar(20);not null"`
	ActorID      uuid.UUID              `gorm:"type:uuid;not null"`
	Metadata     ledger.HistoryMetadata `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CreditNoteHistoryModel) TableName() string {
	return "credit_note_history"
}

// ToDomain converts the persistence model to a domain CreditNoteHistory.
func (m *CreditNoteHistoryModel) ToDomain() ledger.CreditNoteHistory {
	return ledger.CreditNoteHistory{
		ID:           m.ID,
		CreditNoteID: m.CreditNoteID,
		Action:       m.Action,
		ActorID:      m.ActorID,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
	}
}

// CreditNoteHistoryModelFromDomain creates a new persistence model from a domain history entry.
func CreditNoteHistoryModelFromDomain(h *ledger.CreditNoteHistory) *CreditNoteHistoryModel {
	return &CreditNoteHistoryModel{
		ID:           h.ID,
		CreditNoteID: h.CreditNoteID,
		Action:       h.Action,
		ActorID:      h.ActorID,
		Metadata:     h.Metadata,
		CreatedAt:    h.CreatedAt,
	}
}

// NumberSequenceModel is one named counter
type NumberSequenceModel struct {
	Name  string `gorm:"type:varchar(50);primary_key"`
	Value int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NumberSequenceModel) TableName() string {
	return "number_sequences"
}

// LedgerModels lists every model the ledger reads or writes, in an order
// suitable for AutoMigrate.
func LedgerModels() []interface{} {
	return []interface{}{
		&PatientModel{},
		&ProductModel{},
		&AppointmentModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&CreditNoteModel{},
		&CreditNoteApplicationModel{},
		&CreditNoteHistoryModel{},
		&NumberSequenceModel{},
	}
}
