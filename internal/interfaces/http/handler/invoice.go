package handler

import (
	"context"

	appledger "github.com/clinic/backend/internal/application/ledger"
	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceService is the part of the ledger application the invoice
// endpoints call.
type InvoiceService interface {
	Create(ctx context.Context, actor ledger.Actor, req appledger.InvoiceRequest) (*appledger.InvoiceDetailResponse, error)
	Update(ctx context.Context, actor ledger.Actor, id uuid.UUID, req appledger.InvoiceRequest) (*appledger.InvoiceDetailResponse, error)
	Delete(ctx context.Context, actor ledger.Actor, id uuid.UUID) error
	RecordPayment(ctx context.Context, actor ledger.Actor, id uuid.UUID, req appledger.RecordPaymentRequest) (*appledger.InvoiceResponse, error)
	Get(ctx context.Context, actor ledger.Actor, id uuid.UUID) (*appledger.InvoiceDetailResponse, error)
	List(ctx context.Context, actor ledger.Actor, filter appledger.InvoiceListFilter) ([]appledger.InvoiceResponse, int64, error)
}

// Default pagination
const (
	defaultPage     = 1
	defaultPageSize = 20
)

// InvoiceHandler handles invoice-related API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// ListInvoicesQuery holds the query parameters of GET /invoices
type ListInvoicesQuery struct {
	PatientID string `form:"patient_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=unpaid partial paid"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (q ListInvoicesQuery) toFilter() appledger.InvoiceListFilter {
	filter := appledger.InvoiceListFilter{
		Status:   q.Status,
		Page:     q.Page,
		PageSize: q.PageSize,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	}
	if filter.Page == 0 {
		filter.Page = defaultPage
	}
	if filter.PageSize == 0 {
		filter.PageSize = defaultPageSize
	}
	if q.PatientID != "" {
		// already validated by the uuid binding
		id := uuid.MustParse(q.PatientID)
		filter.PatientID = &id
	}
	return filter
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appledger.InvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var query ListInvoicesQuery
	if !h.bindQuery(c, &query) {
		return
	}
	filter := query.toFilter()

	invoices, total, err := h.invoiceService.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Update handles PUT /invoices/:id. The body replaces the invoice's lines,
// discount, payment and credit applications.
func (h *InvoiceHandler) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "invoice")
	if !ok {
		return
	}
	var req appledger.InvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Delete handles DELETE /invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "invoice")
	if !ok {
		return
	}

	if err := h.invoiceService.Delete(c.Request.Context(), actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RecordPayment handles POST /invoices/:id/payments
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id", "invoice")
	if !ok {
		return
	}
	var req appledger.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.RecordPayment(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}
