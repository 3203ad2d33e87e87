package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/persistence"
	"github.com/clinic/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// recordingPublisher keeps every published event for inspection
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// ledgerFixture wires both services to real repositories on an in-memory database
type ledgerFixture struct {
	t         *testing.T
	db        *gorm.DB
	invoices  *appledger.InvoiceService
	notes     *appledger.CreditNoteService
	published *recordingPublisher

	// reception may create and edit invoices but only sees its own
	reception ledger.Actor
	// manager has every capability
	manager ledger.Actor
	// viewer may only read its own invoices
	viewer ledger.Actor
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))

	logger := zap.NewNop()
	uow := persistence.NewGormUnitOfWork(db)
	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	creditNoteRepo := persistence.NewGormCreditNoteRepository(db)
	applicationRepo := persistence.NewGormCreditNoteApplicationRepository(db)
	historyRepo := persistence.NewGormCreditNoteHistoryRepository(db)

	published := &recordingPublisher{}
	invoices := appledger.NewInvoiceService(uow, invoiceRepo, creditNoteRepo, applicationRepo, logger)
	invoices.SetEventPublisher(published)
	notes := appledger.NewCreditNoteService(uow, invoiceRepo, creditNoteRepo, applicationRepo, historyRepo,
		persistence.NewGormPatientDirectory(db), logger)
	notes.SetEventPublisher(published)

	return &ledgerFixture{
		t:         t,
		db:        db,
		invoices:  invoices,
		notes:     notes,
		published: published,
		reception: ledger.ActorFromPermissions(uuid.New(), "Reception", []string{ledger.PermissionInvoiceCreate}),
		manager: ledger.ActorFromPermissions(uuid.New(), "Clinic Manager",
			[]string{ledger.PermissionInvoiceCreate, ledger.PermissionInvoiceViewAll}),
		viewer: ledger.ActorFromPermissions(uuid.New(), "Nurse", nil),
	}
}

func (f *ledgerFixture) patient(name string) uuid.UUID {
	f.t.Helper()
	patient := models.PatientModel{BaseModel: baseModel(), Name: name}
	require.NoError(f.t, f.db.Create(&patient).Error)
	return patient.ID
}

func (f *ledgerFixture) product(name, price string, stock int) uuid.UUID {
	f.t.Helper()
	product := models.ProductModel{
		BaseModel:     baseModel(),
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
	require.NoError(f.t, f.db.Create(&product).Error)
	return product.ID
}

func (f *ledgerFixture) appointment(patientID uuid.UUID) uuid.UUID {
	f.t.Helper()
	appointment := models.AppointmentModel{
		BaseModel:   baseModel(),
		PatientID:   patientID,
		ScheduledAt: time.Now().Add(time.Hour),
		Status:      ledger.AppointmentStatusScheduled,
	}
	require.NoError(f.t, f.db.Create(&appointment).Error)
	return appointment.ID
}

func (f *ledgerFixture) stock(productID uuid.UUID) int {
	f.t.Helper()
	var product models.ProductModel
	require.NoError(f.t, f.db.First(&product, "id = ?", productID).Error)
	return product.StockQuantity
}

func (f *ledgerFixture) appointmentState(id uuid.UUID) models.AppointmentModel {
	f.t.Helper()
	var appointment models.AppointmentModel
	require.NoError(f.t, f.db.First(&appointment, "id = ?", id).Error)
	return appointment
}

// manualInvoice creates an invoice with one manual line of the given price
func (f *ledgerFixture) manualInvoice(actor ledger.Actor, patientID uuid.UUID, price string) *appledger.InvoiceDetailResponse {
	f.t.Helper()
	inv, err := f.invoices.Create(context.Background(), actor, appledger.InvoiceRequest{
		PatientID: patientID,
		Items:     []appledger.LineItemRequest{manualLine("Consultation", price, 1)},
	})
	require.NoError(f.t, err)
	return inv
}

func baseModel() models.BaseModel {
	e := shared.NewBaseEntity()
	return models.BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func manualLine(description, price string, quantity int) appledger.LineItemRequest {
	p := decimal.RequireFromString(price)
	return appledger.LineItemRequest{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   &p,
	}
}

func catalogLine(productID uuid.UUID, quantity int) appledger.LineItemRequest {
	id := productID
	return appledger.LineItemRequest{ProductID: &id, Quantity: quantity}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// money formats an amount for comparison, so 85 and 85.0000 compare equal
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
