package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCreditNoteService struct {
	mock.Mock
}

func (m *MockCreditNoteService) Issue(ctx context.Context, actor ledger.Actor, invoiceID uuid.UUID, req appledger.IssueCreditNoteRequest) (*appledger.CreditNoteResponse, error) {
	args := m.Called(ctx, actor, invoiceID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.CreditNoteResponse), args.Error(1)
}

func (m *MockCreditNoteService) Apply(ctx context.Context, actor ledger.Actor, creditNoteID uuid.UUID, req appledger.ApplyCreditNoteRequest) (*appledger.CreditNoteApplicationResponse, error) {
	args := m.Called(ctx, actor, creditNoteID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.CreditNoteApplicationResponse), args.Error(1)
}

func (m *MockCreditNoteService) Void(ctx context.Context, actor ledger.Actor, creditNoteID uuid.UUID, req appledger.VoidCreditNoteRequest) (*appledger.CreditNoteResponse, error) {
	args := m.Called(ctx, actor, creditNoteID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.CreditNoteResponse), args.Error(1)
}

func (m *MockCreditNoteService) Get(ctx context.Context, actor ledger.Actor, id uuid.UUID) (*appledger.CreditNoteDetailResponse, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appledger.CreditNoteDetailResponse), args.Error(1)
}

func (m *MockCreditNoteService) ListForPatient(ctx context.Context, patientID uuid.UUID, onlyAvailable bool) ([]appledger.CreditNoteResponse, error) {
	args := m.Called(ctx, patientID, onlyAvailable)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appledger.CreditNoteResponse), args.Error(1)
}

func setupCreditNoteHandler(actor *ledger.Actor) (*gin.Engine, *MockCreditNoteService) {
	svc := new(MockCreditNoteService)
	h := NewCreditNoteHandler(svc)

	engine := newTestEngine(actor)
	engine.POST("/api/v1/invoices/:id/credit-notes", h.Issue)
	engine.GET("/api/v1/credit-notes/:id", h.Get)
	engine.POST("/api/v1/credit-notes/:id/apply", h.Apply)
	engine.POST("/api/v1/credit-notes/:id/void", h.Void)
	engine.GET("/api/v1/patients/:id/credit-notes", h.ListForPatient)
	return engine, svc
}

func sampleCreditNote(remaining int64) appledger.CreditNoteResponse {
	return appledger.CreditNoteResponse{
		ID:              uuid.New(),
		CreditNo:        "CN-000007",
		InvoiceID:       uuid.New(),
		PatientID:       uuid.New(),
		Type:            string(ledger.CreditNoteTypeFull),
		Status:          string(ledger.CreditNoteStatusOpen),
		TotalAmount:     decimal.NewFromInt(60),
		RemainingAmount: decimal.NewFromInt(remaining),
		IssuedBy:        staffActor.ID,
		CreatedAt:       time.Now(),
		Version:         1,
	}
}

func TestCreditNoteHandler_Issue(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&staffActor)
	invoiceID := uuid.New()
	note := sampleCreditNote(60)

	svc.On("Issue", mock.Anything, staffActor, invoiceID, mock.MatchedBy(func(req appledger.IssueCreditNoteRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(60)) && req.Reason == "Cancelled procedure"
	})).Return(&note, nil)

	w := doRequest(engine, http.MethodPost, "/api/v1/invoices/"+invoiceID.String()+"/credit-notes", map[string]any{
		"amount": "60",
		"reason": "Cancelled procedure",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "CN-000007", decodeData[appledger.CreditNoteResponse](t, w).CreditNo)
	svc.AssertExpectations(t)
}

func TestCreditNoteHandler_Issue_ExceedsBalance(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&staffActor)
	invoiceID := uuid.New()
	svc.On("Issue", mock.Anything, staffActor, invoiceID, mock.Anything).
		Return(nil, shared.NewDomainError(ledger.ErrCodeCreditExceedsBalance, "Credit amount exceeds the refundable balance"))

	w := doRequest(engine, http.MethodPost, "/api/v1/invoices/"+invoiceID.String()+"/credit-notes", map[string]any{"amount": 500})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeCreditExceedsBalance, decodeResponse(t, w).Error.Code)
}

func TestCreditNoteHandler_Apply(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&staffActor)
	noteID := uuid.New()
	invoiceID := uuid.New()
	application := &appledger.CreditNoteApplicationResponse{
		ID:               uuid.New(),
		CreditNoteID:     noteID,
		AppliedInvoiceID: invoiceID,
		AppliedAmount:    decimal.NewFromInt(40),
		AppliedBy:        staffActor.ID,
		CreatedAt:        time.Now(),
	}
	svc.On("Apply", mock.Anything, staffActor, noteID, mock.MatchedBy(func(req appledger.ApplyCreditNoteRequest) bool {
		return req.InvoiceID == invoiceID && req.Amount.Equal(decimal.NewFromInt(40))
	})).Return(application, nil)

	w := doRequest(engine, http.MethodPost, "/api/v1/credit-notes/"+noteID.String()+"/apply", map[string]any{
		"invoice_id": invoiceID,
		"amount":     "40",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData[appledger.CreditNoteApplicationResponse](t, w)
	assert.Equal(t, invoiceID, data.AppliedInvoiceID)
	assert.True(t, data.AppliedAmount.Equal(decimal.NewFromInt(40)))
}

func TestCreditNoteHandler_Apply_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"patient mismatch", shared.NewDomainError(ledger.ErrCodePatientMismatch, "Credit note belongs to another patient"), http.StatusUnprocessableEntity, dto.ErrCodePatientMismatch},
		{"unavailable", shared.NewDomainError(ledger.ErrCodeCreditNoteUnavailable, "Credit note is not available"), http.StatusUnprocessableEntity, dto.ErrCodeCreditNoteUnavailable},
		{"concurrent spend", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, svc := setupCreditNoteHandler(&staffActor)
			noteID := uuid.New()
			svc.On("Apply", mock.Anything, staffActor, noteID, mock.Anything).Return(nil, tt.err)

			w := doRequest(engine, http.MethodPost, "/api/v1/credit-notes/"+noteID.String()+"/apply", map[string]any{
				"invoice_id": uuid.New(),
				"amount":     10,
			})

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeResponse(t, w).Error.Code)
		})
	}
}

func TestCreditNoteHandler_Void(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&managerActor)
	note := sampleCreditNote(60)
	voided := note
	voided.Status = string(ledger.CreditNoteStatusVoided)
	voided.VoidReason = "Issued in error"
	svc.On("Void", mock.Anything, managerActor, note.ID, appledger.VoidCreditNoteRequest{Reason: "Issued in error"}).
		Return(&voided, nil)

	w := doRequest(engine, http.MethodPost, "/api/v1/credit-notes/"+note.ID.String()+"/void", map[string]any{
		"reason": "Issued in error",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "voided", decodeData[appledger.CreditNoteResponse](t, w).Status)
}

func TestCreditNoteHandler_Void_ReasonRequired(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&managerActor)

	w := doRequest(engine, http.MethodPost, "/api/v1/credit-notes/"+uuid.New().String()+"/void", map[string]any{})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "reason", resp.Error.Details[0].Field)
	assert.Equal(t, dto.ErrCodeValidationRequired, resp.Error.Details[0].Code)
	svc.AssertNotCalled(t, "Void", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreditNoteHandler_Get_Forbidden(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&staffActor)
	id := uuid.New()
	svc.On("Get", mock.Anything, staffActor, id).Return(nil, shared.ErrForbidden)

	w := doRequest(engine, http.MethodGet, "/api/v1/credit-notes/"+id.String(), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreditNoteHandler_Get(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&staffActor)
	note := sampleCreditNote(20)
	detail := &appledger.CreditNoteDetailResponse{
		CreditNoteResponse: note,
		Applications:       []appledger.CreditNoteApplicationResponse{},
		History: []appledger.CreditNoteHistoryResponse{
			{ID: uuid.New(), Action: "issued", ActorID: staffActor.ID, Amount: decimal.NewFromInt(60), CreatedAt: time.Now()},
		},
	}
	svc.On("Get", mock.Anything, staffActor, note.ID).Return(detail, nil)

	w := doRequest(engine, http.MethodGet, "/api/v1/credit-notes/"+note.ID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData[appledger.CreditNoteDetailResponse](t, w)
	assert.Equal(t, "20", data.RemainingAmount.String())
	require.Len(t, data.History, 1)
	assert.Equal(t, "issued", data.History[0].Action)
}

func TestCreditNoteHandler_ListForPatient(t *testing.T) {
	engine, svc := setupCreditNoteHandler(&staffActor)
	patientID := uuid.New()
	notes := []appledger.CreditNoteResponse{sampleCreditNote(60), sampleCreditNote(5)}
	svc.On("ListForPatient", mock.Anything, patientID, true).Return(notes, nil)
	svc.On("ListForPatient", mock.Anything, patientID, false).Return([]appledger.CreditNoteResponse{}, nil)

	w := doRequest(engine, http.MethodGet, "/api/v1/patients/"+patientID.String()+"/credit-notes?available=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]appledger.CreditNoteResponse](t, w), 2)

	w = doRequest(engine, http.MethodGet, "/api/v1/patients/"+patientID.String()+"/credit-notes", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeData[[]appledger.CreditNoteResponse](t, w))
	svc.AssertExpectations(t)
}

func TestCreditNoteHandler_RequiresActor(t *testing.T) {
	engine, svc := setupCreditNoteHandler(nil)

	w := doRequest(engine, http.MethodGet, "/api/v1/patients/"+uuid.New().String()+"/credit-notes", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "ListForPatient", mock.Anything, mock.Anything, mock.Anything)
}
