package ledger

import (
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeInvoice    = "Invoice"
	AggregateTypeCreditNote = "CreditNote"
)

// Event type constants
const (
	EventTypeInvoiceCreated         = "InvoiceCreated"
	EventTypeInvoiceUpdated         = "InvoiceUpdated"
	EventTypeInvoiceDeleted         = "InvoiceDeleted"
	EventTypeInvoicePaymentRecorded = "InvoicePaymentRecorded"
	EventTypeInvoiceStatusChanged   = "InvoiceStatusChanged"
	EventTypeCreditNoteIssued       = "CreditNoteIssued"
	EventTypeCreditNoteApplied      = "CreditNoteApplied"
	EventTypeCreditNoteReleased     = "CreditNoteReleased"
	EventTypeCreditNoteVoided       = "CreditNoteVoided"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNo   string          `json:"invoice_no"`
	PatientID   uuid.UUID       `json:"patient_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      InvoiceStatus   `json:"status"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceNo:       inv.InvoiceNo,
		PatientID:       inv.PatientID,
		TotalAmount:     inv.TotalAmount,
		Status:          inv.Status,
	}
}

// InvoiceUpdatedEvent is raised when an invoice is revised
type InvoiceUpdatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNo   string          `json:"invoice_no"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewInvoiceUpdatedEvent creates a new InvoiceUpdatedEvent
func NewInvoiceUpdatedEvent(inv *Invoice) *InvoiceUpdatedEvent {
	return &InvoiceUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceUpdated, AggregateTypeInvoice, inv.ID),
		InvoiceNo:       inv.InvoiceNo,
		TotalAmount:     inv.TotalAmount,
	}
}

// InvoiceDeletedEvent is raised when an invoice is deleted
type InvoiceDeletedEvent struct {
	shared.BaseDomainEvent
	InvoiceNo string `json:"invoice_no"`
}

// NewInvoiceDeletedEvent creates a new InvoiceDeletedEvent
func NewInvoiceDeletedEvent(inv *Invoice) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceDeleted, AggregateTypeInvoice, inv.ID),
		InvoiceNo:       inv.InvoiceNo,
	}
}

// InvoicePaymentRecordedEvent is raised when a direct payment is recorded
type InvoicePaymentRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceNo string          `json:"invoice_no"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewInvoicePaymentRecordedEvent creates a new InvoicePaymentRecordedEvent
func NewInvoicePaymentRecordedEvent(inv *Invoice, amount decimal.Decimal) *InvoicePaymentRecordedEvent {
	return &InvoicePaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentRecorded, AggregateTypeInvoice, inv.ID),
		InvoiceNo:       inv.InvoiceNo,
		Amount:          amount,
	}
}

// InvoiceStatusChangedEvent tells the invoice creator that someone else moved
// the invoice to a new payment status.
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceNo   string        `json:"invoice_no"`
	OldStatus   InvoiceStatus `json:"old_status"`
	NewStatus   InvoiceStatus `json:"new_status"`
	ActorID     uuid.UUID     `json:"actor_id"`
	ActorName   string        `json:"actor_name"`
	RecipientID uuid.UUID     `json:"recipient_id"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, oldStatus InvoiceStatus, actor Actor) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID),
		InvoiceNo:       inv.InvoiceNo,
		OldStatus:       oldStatus,
		NewStatus:       inv.Status,
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		RecipientID:     inv.CreatedBy,
	}
}

// CreditNoteIssuedEvent is raised when a credit note is issued
type CreditNoteIssuedEvent struct {
	shared.BaseDomainEvent
	CreditNo    string          `json:"credit_no"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	Type        CreditNoteType  `json:"type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewCreditNoteIssuedEvent creates a new CreditNoteIssuedEvent
func NewCreditNoteIssuedEvent(cn *CreditNote) *CreditNoteIssuedEvent {
	return &CreditNoteIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteIssued, AggregateTypeCreditNote, cn.ID),
		CreditNo:        cn.CreditNo,
		InvoiceID:       cn.InvoiceID,
		PatientID:       cn.PatientID,
		Type:            cn.Type,
		TotalAmount:     cn.TotalAmount,
	}
}

// CreditNoteAppliedEvent is raised when credit is spent on an invoice
type CreditNoteAppliedEvent struct {
	shared.BaseDomainEvent
	CreditNo         string           `json:"credit_no"`
	AppliedInvoiceID uuid.UUID        `json:"applied_invoice_id"`
	Amount           decimal.Decimal  `json:"amount"`
	RemainingAmount  decimal.Decimal  `json:"remaining_amount"`
	Status           CreditNoteStatus `json:"status"`
}

// NewCreditNoteAppliedEvent creates a new CreditNoteAppliedEvent
func NewCreditNoteAppliedEvent(cn *CreditNote, app *CreditNoteApplication) *CreditNoteAppliedEvent {
	return &CreditNoteAppliedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCreditNoteApplied, AggregateTypeCreditNote, cn.ID),
		CreditNo:         cn.CreditNo,
		AppliedInvoiceID: app.AppliedInvoiceID,
		Amount:           app.AppliedAmount,
		RemainingAmount:  cn.RemainingAmount,
		Status:           cn.Status,
	}
}

// CreditNoteReleasedEvent is raised when an application is released back to the note
type CreditNoteReleasedEvent struct {
	shared.BaseDomainEvent
	CreditNo        string          `json:"credit_no"`
	Amount          decimal.Decimal `json:"amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// NewCreditNoteReleasedEvent creates a new CreditNoteReleasedEvent
func NewCreditNoteReleasedEvent(cn *CreditNote, amount decimal.Decimal) *CreditNoteReleasedEvent {
	return &CreditNoteReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteReleased, AggregateTypeCreditNote, cn.ID),
		CreditNo:        cn.CreditNo,
		Amount:          amount,
		RemainingAmount: cn.RemainingAmount,
	}
}

// CreditNoteVoidedEvent is raised when a credit note is voided
type CreditNoteVoidedEvent struct {
	shared.BaseDomainEvent
	CreditNo    string          `json:"credit_no"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reason      string          `json:"reason"`
}

// NewCreditNoteVoidedEvent creates a new CreditNoteVoidedEvent
func NewCreditNoteVoidedEvent(cn *CreditNote) *CreditNoteVoidedEvent {
	return &CreditNoteVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditNoteVoided, AggregateTypeCreditNote, cn.ID),
		CreditNo:        cn.CreditNo,
		InvoiceID:       cn.InvoiceID,
		TotalAmount:     cn.TotalAmount,
		Reason:          cn.VoidReason,
	}
}
