package persistence

import (
	"context"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormUnitOfWork implements UnitOfWork using GORM transactions.
// It provides atomic execution of every ledger write in one operation.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos appledger.TxRepositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxRepositories{tx: tx})
	})
}

// NextNumber advances seq and commits at once, so the counter row is locked
// only for the length of the increment.
func (u *GormUnitOfWork) NextNumber(ctx context.Context, seq ledger.Sequence) (string, error) {
	var number string
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = NewGormSequenceGenerator(tx).Next(ctx, seq)
		return err
	})
	return number, err
}

// gormTxRepositories provides access to all ledger repositories within a transaction.
type gormTxRepositories struct {
	tx *gorm.DB
}

func (r *gormTxRepositories) InvoiceRepo() ledger.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTxRepositories) CreditNoteRepo() ledger.CreditNoteRepository {
	return NewGormCreditNoteRepository(r.tx)
}

func (r *gormTxRepositories) ApplicationRepo() ledger.CreditNoteApplicationRepository {
	return NewGormCreditNoteApplicationRepository(r.tx)
}

func (r *gormTxRepositories) HistoryRepo() ledger.CreditNoteHistoryRepository {
	return NewGormCreditNoteHistoryRepository(r.tx)
}

func (r *gormTxRepositories) Patients() ledger.PatientDirectory {
	return NewGormPatientDirectory(r.tx)
}

func (r *gormTxRepositories) Products() ledger.ProductCatalog {
	return NewGormProductCatalog(r.tx)
}

func (r *gormTxRepositories) Appointments() ledger.AppointmentBook {
	return NewGormAppointmentBook(r.tx)
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ appledger.UnitOfWork = (*GormUnitOfWork)(nil)

// Ensure gormTxRepositories implements TxRepositories
var _ appledger.TxRepositories = (*gormTxRepositories)(nil)
