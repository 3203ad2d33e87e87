package ledger

import (
	"context"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Patient is the part of a patient record the ledger needs
type Patient struct {
	ID   uuid.UUID
	Name string
}

// Product is a catalog product as seen by the ledger
type Product struct {
	ID            uuid.UUID
	Name          string
	Price         decimal.Decimal
	StockQuantity int
}

// AppointmentStatus is the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is an appointment as seen by the ledger
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	InvoiceID *uuid.UUID
}

// PatientDirectory resolves patients
type PatientDirectory interface {
	// FindByID returns a NOT_FOUND error if the patient does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// ProductCatalog resolves products and adjusts their stock
type ProductCatalog interface {
	// FindByIDs returns the products that exist among ids, keyed by ID
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)

	// AdjustStock removes quantity units from stock (a negative quantity
	// returns units). Removal is atomic and fails with INSUFFICIENT_STOCK
	// instead of driving stock below zero.
	AdjustStock(ctx context.Context, productID uuid.UUID, quantity int) error
}

// AppointmentBook resolves appointments and moves them between states
type AppointmentBook interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// MarkCompleted completes the appointment and links the invoice
	MarkCompleted(ctx context.Context, id, invoiceID uuid.UUID) error
	// MarkScheduled reverts the appointment and clears its invoice link
	MarkScheduled(ctx context.Context, id uuid.UUID) error
}

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	PatientID *uuid.UUID
	Status    *InvoiceStatus
	CreatedBy *uuid.UUID // restrict to one creator's invoices
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate finds an invoice with its items and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// List finds invoices matching the filter and the total count
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// Create inserts the invoice and its items
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates the invoice header using its version for optimistic locking
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// ReplaceItems deletes every item of the invoice and inserts items
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []InvoiceItem) error

	// Delete removes the invoice items and then the invoice
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreditNoteRepository defines the interface for credit note persistence
type CreditNoteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CreditNote, error)

	// FindByIDForUpdate finds a credit note and locks its row
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CreditNote, error)

	// FindByPatient lists a patient's credit notes, optionally only spendable ones
	FindByPatient(ctx context.Context, patientID uuid.UUID, onlyAvailable bool) ([]CreditNote, error)

	// FindByInvoice lists credit notes issued from an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]CreditNote, error)

	Create(ctx context.Context, note *CreditNote) error

	// SaveWithLock updates the mutable fields using the version for optimistic locking
	SaveWithLock(ctx context.Context, note *CreditNote) error
}

// CreditNoteApplicationRepository defines the interface for application persistence
type CreditNoteApplicationRepository interface {
	Create(ctx context.Context, app *CreditNoteApplication) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]CreditNoteApplication, error)
	FindByCreditNote(ctx context.Context, creditNoteID uuid.UUID) ([]CreditNoteApplication, error)
	// DeleteByInvoice hard-deletes every application on the invoice
	DeleteByInvoice(ctx context.Context, invoiceID uuid.UUID) error
	CountByInvoice(ctx context.Context, invoiceID uuid.UUID) (int64, error)
}

// CreditNoteHistoryRepository is the append-only credit note audit log
type CreditNoteHistoryRepository interface {
	Append(ctx context.Context, entry *CreditNoteHistory) error
	FindByCreditNote(ctx context.Context, creditNoteID uuid.UUID) ([]CreditNoteHistory, error)
}

// Sequence names a counter and the prefix of the numbers it produces
type Sequence struct {
	Name   string
	Prefix string
}

var (
	InvoiceSequence    = Sequence{Name: "invoice_counter", Prefix: "INV"}
	CreditNoteSequence = Sequence{Name: "credit_note_counter", Prefix: "CN"}
)

// SequenceGenerator hands out formatted, strictly increasing numbers
type SequenceGenerator interface {
	Next(ctx context.Context, seq Sequence) (string, error)
}
