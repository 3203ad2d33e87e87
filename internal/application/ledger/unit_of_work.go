package ledger

import (
	"context"

	"github.com/clinic/backend/internal/domain/ledger"
)

// UnitOfWork runs ledger mutations atomically. When a function is executed
// within a unit of work, every repository it obtains shares one database
// transaction that is committed or rolled back as a whole.
type UnitOfWork interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TxRepositories) error) error

	// NextNumber takes the next value of seq in its own short transaction.
	// The number stays consumed when a later Execute rolls back.
	NextNumber(ctx context.Context, seq ledger.Sequence) (string, error)
}

// TxRepositories provides every repository and collaborator port the ledger
// writes, all bound to the same transaction.
type TxRepositories interface {
	// InvoiceRepo returns the invoice repository scoped to the current transaction
	InvoiceRepo() ledger.InvoiceRepository
	// CreditNoteRepo returns the credit note repository scoped to the current transaction
	CreditNoteRepo() ledger.CreditNoteRepository
	// ApplicationRepo returns the credit note application repository scoped to the current transaction
	ApplicationRepo() ledger.CreditNoteApplicationRepository
	// HistoryRepo returns the credit note audit log scoped to the current transaction
	HistoryRepo() ledger.CreditNoteHistoryRepository
	// Patients returns the patient directory scoped to the current transaction
	Patients() ledger.PatientDirectory
	// Products returns the product catalog scoped to the current transaction
	Products() ledger.ProductCatalog
	// Appointments returns the appointment book scoped to the current transaction
	Appointments() ledger.AppointmentBook
}
