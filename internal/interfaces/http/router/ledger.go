package router

import (
	"github.com/clinic/backend/internal/interfaces/http/handler"
)

// LedgerHandlers are the handlers behind the ledger API
type LedgerHandlers struct {
	Invoices    *handler.InvoiceHandler
	CreditNotes *handler.CreditNoteHandler
}

// LedgerGroups builds the invoice, credit note and patient route groups.
//
//	POST   /invoices                    create
//	GET    /invoices                    list
//	GET    /invoices/:id                detail with credit activity
//	PUT    /invoices/:id                full update
//	DELETE /invoices/:id                delete and restock
//	POST   /invoices/:id/payments       record a direct payment
//	POST   /invoices/:id/credit-notes   issue a credit note
//	GET    /credit-notes/:id            detail with applications and history
//	POST   /credit-notes/:id/apply      spend credit on another invoice
//	POST   /credit-notes/:id/void       void an unspent note
//	GET    /patients/:id/credit-notes   a patient's credit notes
func LedgerGroups(h LedgerHandlers) []*DomainGroup {
	invoices := NewDomainGroup("invoices", "/invoices")
	invoices.POST("", h.Invoices.Create)
	invoices.GET("", h.Invoices.List)
	invoices.GET("/:id", h.Invoices.Get)
	invoices.PUT("/:id", h.Invoices.Update)
	invoices.DELETE("/:id", h.Invoices.Delete)
	invoices.POST("/:id/payments", h.Invoices.RecordPayment)
	invoices.POST("/:id/credit-notes", h.CreditNotes.Issue)

	creditNotes := NewDomainGroup("credit-notes", "/credit-notes")
	creditNotes.GET("/:id", h.CreditNotes.Get)
	creditNotes.POST("/:id/apply", h.CreditNotes.Apply)
	creditNotes.POST("/:id/void", h.CreditNotes.Void)

	patients := NewDomainGroup("patients", "/patients")
	patients.GET("/:id/credit-notes", h.CreditNotes.ListForPatient)

	return []*DomainGroup{invoices, creditNotes, patients}
}

// RegisterLedger registers the ledger route groups on r
func RegisterLedger(r *Router, h LedgerHandlers) *Router {
	for _, group := range LedgerGroups(h) {
		r.Register(group)
	}
	return r
}
