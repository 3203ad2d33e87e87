package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormSequenceGenerator_Next(t *testing.T) {
	db := setupLedgerTestDB(t)
	gen := NewGormSequenceGenerator(db)
	ctx := context.Background()

	t.Run("starts at one and increments", func(t *testing.T) {
		first, err := gen.Next(ctx, ledger.InvoiceSequence)
		require.NoError(t, err)
		second, err := gen.Next(ctx, ledger.InvoiceSequence)
		require.NoError(t, err)

		assert.Equal(t, "INV-000001", first)
		assert.Equal(t, "INV-000002", second)
	})

	t.Run("counters are independent", func(t *testing.T) {
		number, err := gen.Next(ctx, ledger.CreditNoteSequence)
		require.NoError(t, err)
		assert.Equal(t, "CN-000001", number)
	})

	t.Run("rolls back with the transaction", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := NewGormSequenceGenerator(tx).Next(ctx, ledger.InvoiceSequence)
			require.NoError(t, err)
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		number, err := gen.Next(ctx, ledger.InvoiceSequence)
		require.NoError(t, err)
		assert.Equal(t, "INV-000003", number)
	})
}

func TestGormUnitOfWork_NextNumber(t *testing.T) {
	db := setupLedgerTestDB(t)
	uow := NewGormUnitOfWork(db)
	ctx := context.Background()

	first, err := uow.NextNumber(ctx, ledger.CreditNoteSequence)
	require.NoError(t, err)
	assert.Equal(t, "CN-000001", first)

	// the write that would have used the number fails
	err = uow.Execute(ctx, func(repos appledger.TxRepositories) error {
		require.NoError(t, repos.HistoryRepo().Append(ctx, ledger.NewCreditNoteHistory(
			uuid.New(), ledger.HistoryActionCreated, uuid.New(), uuid.New(), decimal.NewFromInt(10), first)))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var history int64
	require.NoError(t, db.Model(&models.CreditNoteHistoryModel{}).Count(&history).Error)
	assert.Zero(t, history)

	second, err := uow.NextNumber(ctx, ledger.CreditNoteSequence)
	require.NoError(t, err)
	assert.Equal(t, "CN-000002", second, "a consumed number is never handed out again")

	invoiceNo, err := uow.NextNumber(ctx, ledger.InvoiceSequence)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", invoiceNo)
}

func TestGormSequenceGenerator_Next_SQL(t *testing.T) {
	t.Run("upserts the counter row", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "number_sequences" .* ON CONFLICT \("name"\) DO UPDATE SET "value"=number_sequences\.value \+ 1`).
			WithArgs("invoice_counter", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "number_sequences" WHERE name = \$1`).
			WithArgs("invoice_counter", 1).
			WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("invoice_counter", 42))

		number, err := NewGormSequenceGenerator(db).Next(context.Background(), ledger.InvoiceSequence)
		require.NoError(t, err)
		assert.Equal(t, "INV-000042", number)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database errors", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "number_sequences"`).
			WillReturnError(sql.ErrConnDone)

		_, err := NewGormSequenceGenerator(db).Next(context.Background(), ledger.CreditNoteSequence)
		require.Error(t, err)
		assert.ErrorIs(t, err, sql.ErrConnDone)
		assert.Contains(t, err.Error(), "advance sequence credit_note_counter")
	})
}
