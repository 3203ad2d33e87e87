package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// issueTestNote stores an invoice and a credit note refunding amount from it
func issueTestNote(t *testing.T, db *gorm.DB, number string, patientID uuid.UUID, paid, amount string) (*ledger.Invoice, *ledger.CreditNote) {
	t.Helper()
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-"+number, patientID, uuid.New(), paid)
	inv.PaidAmount = decimal.RequireFromString(paid)
	inv.RefreshStatus()
	require.NoError(t, NewGormInvoiceRepository(db).Create(ctx, inv))

	note, err := ledger.IssueCreditNote("CN-"+number, inv, decimal.RequireFromString(amount), "overcharge", "", uuid.New())
	require.NoError(t, err)
	require.NoError(t, NewGormCreditNoteRepository(db).Create(ctx, note))
	return inv, note
}

func TestGormCreditNoteRepository_CreateAndFind(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormCreditNoteRepository(db)
	ctx := context.Background()

	patientID := seedPatient(t, db, "Elena")
	inv, note := issueTestNote(t, db, "000001", patientID, "100.00", "30.00")

	found, err := repo.FindByIDForUpdate(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "CN-000001", found.CreditNo)
	assert.Equal(t, inv.ID, found.InvoiceID)
	assert.Equal(t, patientID, found.PatientID)
	assert.Equal(t, ledger.CreditNoteTypePartial, found.Type)
	assert.Equal(t, ledger.CreditNoteStatusOpen, found.Status)
	assert.Equal(t, "30.00", found.TotalAmount.StringFixed(2))
	assert.Equal(t, "30.00", found.RemainingAmount.StringFixed(2))
	assert.Equal(t, "overcharge", found.Reason)

	byInvoice, err := repo.FindByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	assert.Equal(t, note.ID, byInvoice[0].ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormCreditNoteRepository_FindByPatient(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormCreditNoteRepository(db)
	ctx := context.Background()

	patientID := seedPatient(t, db, "Fatima")
	otherPatient := seedPatient(t, db, "Gustavo")

	_, open := issueTestNote(t, db, "000001", patientID, "100.00", "20.00")
	_, closed := issueTestNote(t, db, "000002", patientID, "100.00", "10.00")
	_, voided := issueTestNote(t, db, "000003", patientID, "100.00", "5.00")
	issueTestNote(t, db, "000004", otherPatient, "100.00", "50.00")

	closed.Consume(closed.RemainingAmount)
	require.NoError(t, repo.SaveWithLock(ctx, closed))
	require.NoError(t, voided.Void("entered twice"))
	require.NoError(t, repo.SaveWithLock(ctx, voided))

	t.Run("all notes of the patient", func(t *testing.T) {
		notes, err := repo.FindByPatient(ctx, patientID, false)
		require.NoError(t, err)
		assert.Len(t, notes, 3)
	})

	t.Run("only notes with balance to spend", func(t *testing.T) {
		notes, err := repo.FindByPatient(ctx, patientID, true)
		require.NoError(t, err)
		require.Len(t, notes, 1)
		assert.Equal(t, open.ID, notes[0].ID)
	})
}

func TestGormCreditNoteRepository_SaveWithLock(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormCreditNoteRepository(db)
	ctx := context.Background()

	patientID := seedPatient(t, db, "Helena")
	_, note := issueTestNote(t, db, "000001", patientID, "100.00", "40.00")

	stale, err := repo.FindByID(ctx, note.ID)
	require.NoError(t, err)

	require.NoError(t, note.Void("duplicate"))
	require.NoError(t, repo.SaveWithLock(ctx, note))
	assert.Equal(t, 2, note.Version)

	found, err := repo.FindByID(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.CreditNoteStatusVoided, found.Status)
	assert.True(t, found.RemainingAmount.IsZero())
	assert.Equal(t, "duplicate", found.VoidReason)
	require.NotNil(t, found.VoidedAt)

	stale.Consume(decimal.NewFromInt(10))
	err = repo.SaveWithLock(ctx, stale)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
}

func TestGormCreditNoteApplicationRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormCreditNoteApplicationRepository(db)
	ctx := context.Background()

	noteID := uuid.New()
	invoiceID := uuid.New()
	otherInvoice := uuid.New()
	actorID := uuid.New()

	first := ledger.NewCreditNoteApplication(noteID, invoiceID, decimal.NewFromInt(15), actorID)
	second := ledger.NewCreditNoteApplication(noteID, invoiceID, decimal.NewFromInt(5), actorID)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	elsewhere := ledger.NewCreditNoteApplication(noteID, otherInvoice, decimal.NewFromInt(7), actorID)
	elsewhere.CreatedAt = first.CreatedAt.Add(2 * time.Second)

	for _, app := range []*ledger.CreditNoteApplication{first, second, elsewhere} {
		require.NoError(t, repo.Create(ctx, app))
	}

	byInvoice, err := repo.FindByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	require.Len(t, byInvoice, 2)
	assert.Equal(t, first.ID, byInvoice[0].ID)
	assert.Equal(t, "15.00", byInvoice[0].AppliedAmount.StringFixed(2))

	byNote, err := repo.FindByCreditNote(ctx, noteID)
	require.NoError(t, err)
	assert.Len(t, byNote, 3)

	count, err := repo.CountByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, repo.DeleteByInvoice(ctx, invoiceID))

	count, err = repo.CountByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.CountByInvoice(ctx, otherInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormCreditNoteHistoryRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormCreditNoteHistoryRepository(db)
	ctx := context.Background()

	noteID := uuid.New()
	invoiceID := uuid.New()
	actorID := uuid.New()

	created := ledger.NewCreditNoteHistory(noteID, ledger.HistoryActionCreated, actorID, invoiceID, decimal.NewFromInt(50), "overcharge")
	applied := ledger.NewCreditNoteHistory(noteID, ledger.HistoryActionApplied, actorID, uuid.Nil, decimal.NewFromInt(20), "")
	applied.CreatedAt = created.CreatedAt.Add(time.Second)

	require.NoError(t, repo.Append(ctx, created))
	require.NoError(t, repo.Append(ctx, applied))

	entries, err := repo.FindByCreditNote(ctx, noteID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ledger.HistoryActionCreated, entries[0].Action)
	require.NotNil(t, entries[0].Metadata.InvoiceID)
	assert.Equal(t, invoiceID, *entries[0].Metadata.InvoiceID)
	assert.Equal(t, "50.00", entries[0].Metadata.Amount.StringFixed(2))
	assert.Equal(t, "overcharge", entries[0].Metadata.Reason)

	assert.Equal(t, ledger.HistoryActionApplied, entries[1].Action)
	assert.Nil(t, entries[1].Metadata.InvoiceID)
}
