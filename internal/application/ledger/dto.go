package ledger

import (
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LineItemRequest is one invoice line. A line with a product_id is a catalog
// line; without one it is a manual line that needs a description and unit_price.
type LineItemRequest struct {
	ProductID    *uuid.UUID       `json:"product_id"`
	Description  string           `json:"description" binding:"max=200"`
	Quantity     int              `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unit_price"` // overrides the catalog price when set
	Discount     decimal.Decimal  `json:"discount"`
	DiscountType string           `json:"discount_type" binding:"omitempty,discount_type"`
}

// ToLine converts the request into the domain line variant
func (r LineItemRequest) ToLine() ledger.LineItem {
	discount := ledger.Discount{Value: r.Discount, Type: ledger.DiscountType(r.DiscountType)}
	if r.ProductID != nil {
		return ledger.CatalogLine{
			ProductID: *r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
			Discount:  discount,
		}
	}
	price := decimal.Zero
	if r.UnitPrice != nil {
		price = *r.UnitPrice
	}
	return ledger.ManualLine{
		Description: r.Description,
		UnitPrice:   price,
		Quantity:    r.Quantity,
		Discount:    discount,
	}
}

// AppliedCreditRequest selects credit note balance to spend on an invoice
type AppliedCreditRequest struct {
	CreditNoteID uuid.UUID       `json:"credit_note_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
}

// InvoiceRequest is the full content of an invoice. It is used for both
// create and update; an update replaces everything.
type InvoiceRequest struct {
	PatientID      uuid.UUID              `json:"patient_id" binding:"required"`
	AppointmentID  *uuid.UUID             `json:"appointment_id"`
	Items          []LineItemRequest      `json:"items" binding:"dive"`
	Discount       decimal.Decimal        `json:"discount"`
	DiscountType   string                 `json:"discount_type" binding:"omitempty,discount_type"`
	PaidAmount     decimal.Decimal        `json:"paid_amount"`
	AppliedCredits []AppliedCreditRequest `json:"applied_credits" binding:"dive"`
	Notes          string                 `json:"notes" binding:"max=2000"`
}

// Lines converts the requested items into domain lines
func (r InvoiceRequest) Lines() []ledger.LineItem {
	return lo.Map(r.Items, func(item LineItemRequest, _ int) ledger.LineItem {
		return item.ToLine()
	})
}

// InvoiceDiscount returns the invoice-level discount
func (r InvoiceRequest) InvoiceDiscount() ledger.Discount {
	return ledger.Discount{Value: r.Discount, Type: ledger.DiscountType(r.DiscountType)}
}

// RecordPaymentRequest records a direct payment on an invoice
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// IssueCreditNoteRequest refunds part or all of an invoice as store credit
type IssueCreditNoteRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason" binding:"max=500"`
	Notes  string          `json:"notes" binding:"max=2000"`
}

// ApplyCreditNoteRequest spends credit note balance on an invoice
type ApplyCreditNoteRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// VoidCreditNoteRequest cancels an unspent credit note
type VoidCreditNoteRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// InvoiceListFilter represents filter options for the invoice list
type InvoiceListFilter struct {
	PatientID *uuid.UUID `form:"patient_id"`
	Status    string     `form:"status" binding:"omitempty,oneof=unpaid partial paid"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceItemResponse represents an invoice line in API responses
type InvoiceItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      *uuid.UUID      `json:"product_id,omitempty"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountType   string          `json:"discount_type"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	IsManual       bool            `json:"is_manual"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                  uuid.UUID             `json:"id"`
	InvoiceNo           string                `json:"invoice_no"`
	PatientID           uuid.UUID             `json:"patient_id"`
	AppointmentID       *uuid.UUID            `json:"appointment_id,omitempty"`
	Items               []InvoiceItemResponse `json:"items"`
	Subtotal            decimal.Decimal       `json:"subtotal"`
	Discount            decimal.Decimal       `json:"discount"`
	DiscountType        string                `json:"discount_type"`
	DiscountAmount      decimal.Decimal       `json:"discount_amount"`
	TotalAmount         decimal.Decimal       `json:"total_amount"`
	PaidAmount          decimal.Decimal       `json:"paid_amount"`
	CreditAppliedAmount decimal.Decimal       `json:"credit_applied_amount"`
	RefundedAmount      decimal.Decimal       `json:"refunded_amount"`
	Outstanding         decimal.Decimal       `json:"outstanding"`
	Status              string                `json:"status"`
	Notes               string                `json:"notes,omitempty"`
	CreatedBy           uuid.UUID             `json:"created_by"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	Version             int                   `json:"version"`
}

// CreditNoteApplicationResponse represents one credit spend
type CreditNoteApplicationResponse struct {
	ID               uuid.UUID       `json:"id"`
	CreditNoteID     uuid.UUID       `json:"credit_note_id"`
	AppliedInvoiceID uuid.UUID       `json:"applied_invoice_id"`
	AppliedAmount    decimal.Decimal `json:"applied_amount"`
	AppliedBy        uuid.UUID       `json:"applied_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CreditNoteResponse represents a credit note in API responses
type CreditNoteResponse struct {
	ID              uuid.UUID       `json:"id"`
	CreditNo        string          `json:"credit_no"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Reason          string          `json:"reason,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	IssuedBy        uuid.UUID       `json:"issued_by"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	VoidReason      string          `json:"void_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Version         int             `json:"version"`
}

// CreditNoteHistoryResponse represents one audit entry
type CreditNoteHistoryResponse struct {
	ID        uuid.UUID       `json:"id"`
	Action    string          `json:"action"`
	ActorID   uuid.UUID       `json:"actor_id"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// InvoiceDetailResponse is an invoice with its credit activity
type InvoiceDetailResponse struct {
	InvoiceResponse
	CreditApplications []CreditNoteApplicationResponse `json:"credit_applications"`
	CreditNotes        []CreditNoteResponse            `json:"credit_notes"`
}

// CreditNoteDetailResponse is a credit note with its spends and audit trail
type CreditNoteDetailResponse struct {
	CreditNoteResponse
	Applications []CreditNoteApplicationResponse `json:"applications"`
	History      []CreditNoteHistoryResponse     `json:"history"`
}

// ToInvoiceResponse converts a domain Invoice to InvoiceResponse
func ToInvoiceResponse(inv *ledger.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:            inv.ID,
		InvoiceNo:     inv.InvoiceNo,
		PatientID:     inv.PatientID,
		AppointmentID: inv.AppointmentID,
		Items: lo.Map(inv.Items, func(it ledger.InvoiceItem, _ int) InvoiceItemResponse {
			return InvoiceItemResponse{
				ID:             it.ID,
				ProductID:      it.ProductID,
				ProductName:    it.ProductName,
				Quantity:       it.Quantity,
				UnitPrice:      it.UnitPrice,
				Discount:       it.Discount,
				DiscountType:   string(it.DiscountType),
				DiscountAmount: it.DiscountAmount,
				Total:          it.Total,
				IsManual:       it.IsManual,
			}
		}),
		Subtotal:            inv.Subtotal,
		Discount:            inv.Discount,
		DiscountType:        string(inv.DiscountType),
		DiscountAmount:      inv.DiscountAmount,
		TotalAmount:         inv.TotalAmount,
		PaidAmount:          inv.PaidAmount,
		CreditAppliedAmount: inv.CreditAppliedAmount,
		RefundedAmount:      inv.RefundedAmount,
		Outstanding:         inv.Outstanding(),
		Status:              string(inv.Status),
		Notes:               inv.Notes,
		CreatedBy:           inv.CreatedBy,
		CreatedAt:           inv.CreatedAt,
		UpdatedAt:           inv.UpdatedAt,
		Version:             inv.Version,
	}
}

// ToCreditNoteResponse converts a domain CreditNote to CreditNoteResponse
func ToCreditNoteResponse(cn *ledger.CreditNote) CreditNoteResponse {
	return CreditNoteResponse{
		ID:              cn.ID,
		CreditNo:        cn.CreditNo,
		InvoiceID:       cn.InvoiceID,
		PatientID:       cn.PatientID,
		Type:            string(cn.Type),
		Status:          string(cn.Status),
		TotalAmount:     cn.TotalAmount,
		RemainingAmount: cn.RemainingAmount,
		Reason:          cn.Reason,
		Notes:           cn.Notes,
		IssuedBy:        cn.IssuedBy,
		VoidedAt:        cn.VoidedAt,
		VoidReason:      cn.VoidReason,
		CreatedAt:       cn.CreatedAt,
		Version:         cn.Version,
	}
}

// ToCreditNoteResponses converts a list of credit notes
func ToCreditNoteResponses(notes []ledger.CreditNote) []CreditNoteResponse {
	return lo.Map(notes, func(cn ledger.CreditNote, _ int) CreditNoteResponse {
		return ToCreditNoteResponse(&cn)
	})
}

// ToApplicationResponses converts a list of credit note applications
func ToApplicationResponses(apps []ledger.CreditNoteApplication) []CreditNoteApplicationResponse {
	return lo.Map(apps, func(app ledger.CreditNoteApplication, _ int) CreditNoteApplicationResponse {
		return CreditNoteApplicationResponse{
			ID:               app.ID,
			CreditNoteID:     app.CreditNoteID,
			AppliedInvoiceID: app.AppliedInvoiceID,
			AppliedAmount:    app.AppliedAmount,
			AppliedBy:        app.AppliedBy,
			CreatedAt:        app.CreatedAt,
		}
	})
}

// ToHistoryResponses converts a credit note audit trail
func ToHistoryResponses(entries []ledger.CreditNoteHistory) []CreditNoteHistoryResponse {
	return lo.Map(entries, func(h ledger.CreditNoteHistory, _ int) CreditNoteHistoryResponse {
		return CreditNoteHistoryResponse{
			ID:        h.ID,
			Action:    string(h.Action),
			ActorID:   h.ActorID,
			InvoiceID: h.Metadata.InvoiceID,
			Amount:    h.Metadata.Amount,
			Reason:    h.Metadata.Reason,
			CreatedAt: h.CreatedAt,
		}
	})
}
