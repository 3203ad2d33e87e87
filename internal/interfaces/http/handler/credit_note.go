package handler

import (
	"context"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreditNoteService is the part of the ledger application the credit note
// endpoints call.
type CreditNoteService interface {
	Issue(ctx context.Context, actor ledger.Actor, invoiceID uuid.UUID, req appledger.IssueCreditNoteRequest) (*appledger.CreditNoteResponse, error)
	Apply(ctx context.Context, actor ledger.Actor, creditNoteID uuid.UUID, req appledger.ApplyCreditNoteRequest) (*appledger.CreditNoteApplicationResponse, error)
	Void(ctx context.Context, actor ledger.Actor, creditNoteID uuid.UUID, req appledger.VoidCreditNoteRequest) (*appledger.CreditNoteResponse, error)
	Get(ctx context.Context, actor ledger.Actor, id uuid.UUID) (*appledger.CreditNoteDetailResponse, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, onlyAvailable bool) ([]appledger.CreditNoteResponse, error)
}

// CreditNoteHandler handles credit note endpoints
type CreditNoteHandler struct {
	BaseHandler
	creditNoteService CreditNoteService
}

// NewCreditNoteHandler creates a new CreditNoteHandler
func NewCreditNoteHandler(creditNoteService CreditNoteService) *CreditNoteHandler {
	return &CreditNoteHandler{creditNoteService: creditNoteService}
}

// PatientCreditQuery holds the query parameters of GET /patients/:id/credit-notes
type PatientCreditQuery struct {
	Available bool `form:"available"`
}

// Issue handles POST /invoices/:id/credit-notes
func (h *CreditNoteHandler) Issue(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	invoiceID, ok := h.uuidParam(c, "id", "invoice")
	if !ok {
		return
	}
	var req appledger.IssueCreditNoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	note, err := h.creditNoteService.Issue(c.Request.Context(), actor, invoiceID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, note)
}

// Get handles GET /credit-notes/:id
func (h *CreditNoteHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "credit note")
	if !ok {
		return
	}

	note, err := h.creditNoteService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, note)
}

// Apply handles POST /credit-notes/:id/apply
func (h *CreditNoteHandler) Apply(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "credit note")
	if !ok {
		return
	}
	var req appledger.ApplyCreditNoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	application, err := h.creditNoteService.Apply(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, application)
}

// Void handles POST /credit-notes/:id/void
func (h *CreditNoteHandler) Void(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "credit note")
	if !ok {
		return
	}
	var req appledger.VoidCreditNoteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	note, err := h.creditNoteService.Void(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, note)
}

// ListForPatient handles GET /patients/:id/credit-notes
func (h *CreditNoteHandler) ListForPatient(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	patientID, ok := h.uuidParam(c, "id", "patient")
	if !ok {
		return
	}
	var query PatientCreditQuery
	if !h.bindQuery(c, &query) {
		return
	}

	notes, err := h.creditNoteService.ListForPatient(c.Request.Context(), patientID, query.Available)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, notes)
}
