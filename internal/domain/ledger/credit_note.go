package ledger

import (
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditNoteStatus represents how much of a credit note is still spendable
type CreditNoteStatus string

const (
	CreditNoteStatusOpen    CreditNoteStatus = "open"
	CreditNoteStatusPartial CreditNoteStatus = "partial"
	CreditNoteStatusClosed  CreditNoteStatus = "closed"
	CreditNoteStatusVoided  CreditNoteStatus = "voided"
)

// IsValid checks if the status is a valid CreditNoteStatus
func (s CreditNoteStatus) IsValid() bool {
	switch s {
	case CreditNoteStatusOpen, CreditNoteStatusPartial, CreditNoteStatusClosed, CreditNoteStatusVoided:
		return true
	}
	return false
}

// CanApply returns true if the credit note can be spent
func (s CreditNoteStatus) CanApply() bool {
	return s == CreditNoteStatusOpen || s == CreditNoteStatusPartial
}

// CreditNoteType tells whether the note refunded the whole refundable balance
type CreditNoteType string

const (
	CreditNoteTypeFull    CreditNoteType = "full"
	CreditNoteTypePartial CreditNoteType = "partial"
)

// ComputeCreditNoteStatus derives the status from remaining and total
func ComputeCreditNoteStatus(remaining, total decimal.Decimal) CreditNoteStatus {
	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		return CreditNoteStatusClosed
	case remaining.GreaterThanOrEqual(total):
		return CreditNoteStatusOpen
	default:
		return CreditNoteStatusPartial
	}
}

// CreditNoteApplication records credit from a note spent on an invoice
type CreditNoteApplication struct {
	ID               uuid.UUID
	CreditNoteID     uuid.UUID
	AppliedInvoiceID uuid.UUID
	AppliedAmount    decimal.Decimal
	AppliedBy        uuid.UUID
	CreatedAt        time.Time
}

// NewCreditNoteApplication creates a new application record
func NewCreditNoteApplication(creditNoteID, invoiceID uuid.UUID, amount decimal.Decimal, appliedBy uuid.UUID) *CreditNoteApplication {
	return &CreditNoteApplication{
		ID:               uuid.New(),
		CreditNoteID:     creditNoteID,
		AppliedInvoiceID: invoiceID,
		AppliedAmount:    amount,
		AppliedBy:        appliedBy,
		CreatedAt:        time.Now(),
	}
}

// CreditNote is a refund instrument tied to one originating invoice and patient
type CreditNote struct {
	shared.BaseAggregateRoot
	CreditNo        string
	InvoiceID       uuid.UUID
	PatientID       uuid.UUID
	Type            CreditNoteType
	Status          CreditNoteStatus
	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal
	Reason          string
	Notes           string
	IssuedBy        uuid.UUID
	VoidedAt        *time.Time
	VoidReason      string
}

// IssueCreditNote refunds amount against invoice's refundable balance and
// records the refund on the invoice.
func IssueCreditNote(
	creditNo string,
	invoice *Invoice,
	amount decimal.Decimal,
	reason, notes string,
	issuedBy uuid.UUID,
) (*CreditNote, error) {
	if creditNo == "" {
		return nil, shared.NewValidationError("Credit note number cannot be empty")
	}
	amount = Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Credit amount must be positive")
	}

	maxRefundable := invoice.MaxRefundable()
	if maxRefundable.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrCodeNothingToRefund, "Invoice has no refundable balance")
	}
	if amount.Sub(Epsilon).GreaterThan(maxRefundable) {
		return nil, shared.NewDomainError(ErrCodeCreditExceedsBalance, fmt.Sprintf(
			"Amount exceeds refundable balance. Maximum: %s", maxRefundable.StringFixed(2)))
	}

	noteType := CreditNoteTypePartial
	if amount.Add(Epsilon).GreaterThanOrEqual(maxRefundable) {
		noteType = CreditNoteTypeFull
	}
	amount = decimal.Min(amount, maxRefundable)

	if err := invoice.AddRefund(amount); err != nil {
		return nil, err
	}

	cn := &CreditNote{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CreditNo:          creditNo,
		InvoiceID:         invoice.ID,
		PatientID:         invoice.PatientID,
		Type:              noteType,
		Status:            CreditNoteStatusOpen,
		TotalAmount:       amount,
		RemainingAmount:   amount,
		Reason:            reason,
		Notes:             notes,
		IssuedBy:          issuedBy,
	}
	cn.AddDomainEvent(NewCreditNoteIssuedEvent(cn))
	return cn, nil
}

// IsVoided reports whether the note was voided
func (cn *CreditNote) IsVoided() bool {
	return cn.Status == CreditNoteStatusVoided
}

// CheckAvailable verifies the note can fund amount for patientID. It is used
// when credits are selected while writing an invoice.
func (cn *CreditNote) CheckAvailable(patientID uuid.UUID, amount decimal.Decimal) error {
	if cn.PatientID != patientID {
		return shared.NewDomainError(ErrCodePatientMismatch,
			fmt.Sprintf("Credit note %s belongs to a different patient", cn.CreditNo))
	}
	if !cn.Status.CanApply() {
		return shared.NewDomainError(ErrCodeCreditNoteUnavailable,
			fmt.Sprintf("Credit note %s is not available (status: %s)", cn.CreditNo, cn.Status))
	}
	if cn.RemainingAmount.Add(Epsilon).LessThan(amount) {
		return shared.NewDomainError(ErrCodeCreditExceedsBalance, fmt.Sprintf(
			"Credit note %s has only %s remaining", cn.CreditNo, cn.RemainingAmount.StringFixed(2)))
	}
	return nil
}

// Consume spends up to amount from the note and returns what was taken
func (cn *CreditNote) Consume(amount decimal.Decimal) decimal.Decimal {
	taken := decimal.Min(Round2(amount), cn.RemainingAmount)
	cn.RemainingAmount = cn.RemainingAmount.Sub(taken)
	cn.Status = ComputeCreditNoteStatus(cn.RemainingAmount, cn.TotalAmount)
	return taken
}

// Restore gives back credit from a released application
func (cn *CreditNote) Restore(amount decimal.Decimal) {
	cn.RemainingAmount = decimal.Min(cn.TotalAmount, cn.RemainingAmount.Add(Round2(amount)))
	cn.Status = ComputeCreditNoteStatus(cn.RemainingAmount, cn.TotalAmount)
	cn.AddDomainEvent(NewCreditNoteReleasedEvent(cn, amount))
}

// ApplyTo spends amount of this note on invoice. invoice may be a different
// invoice than the one the note was issued from, but must share the patient.
func (cn *CreditNote) ApplyTo(invoice *Invoice, amount decimal.Decimal, appliedBy uuid.UUID) (*CreditNoteApplication, error) {
	amount = Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Credit amount must be positive")
	}
	if cn.PatientID != invoice.PatientID {
		return nil, shared.NewDomainError(ErrCodePatientMismatch,
			"Credit note and invoice belong to different patients")
	}
	if cn.IsVoided() {
		return nil, shared.NewDomainError(ErrCodeCreditNoteUnavailable, "Credit note has been voided")
	}
	if cn.Status == CreditNoteStatusClosed || cn.RemainingAmount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrCodeCreditNoteUnavailable, "Credit note has no remaining balance")
	}

	due := invoice.Outstanding()
	if due.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.ErrInvalidState.Code, "Invoice has no outstanding balance")
	}
	limit := decimal.Min(cn.RemainingAmount, due)
	if amount.Sub(Epsilon).GreaterThan(limit) {
		return nil, shared.NewDomainError(ErrCodeCreditExceedsBalance,
			"Amount exceeds available credit or invoice balance")
	}

	taken := cn.Consume(decimal.Min(amount, limit))
	if err := invoice.ApplyCredit(taken); err != nil {
		return nil, err
	}
	app := NewCreditNoteApplication(cn.ID, invoice.ID, taken, appliedBy)
	cn.AddDomainEvent(NewCreditNoteAppliedEvent(cn, app))
	return app, nil
}

// Fund spends amount of the note on an invoice that is being written with
// this credit selected. CheckAvailable must have passed for the same amount.
func (cn *CreditNote) Fund(invoice *Invoice, amount decimal.Decimal, appliedBy uuid.UUID) (*CreditNoteApplication, error) {
	taken := cn.Consume(amount)
	if taken.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrCodeCreditNoteUnavailable, "Credit note has no remaining balance")
	}
	if err := invoice.ApplyCredit(taken); err != nil {
		return nil, err
	}
	app := NewCreditNoteApplication(cn.ID, invoice.ID, taken, appliedBy)
	cn.AddDomainEvent(NewCreditNoteAppliedEvent(cn, app))
	return app, nil
}

// Void cancels an unspent credit note. The caller reverses the refund on the
// originating invoice.
func (cn *CreditNote) Void(reason string) error {
	if cn.IsVoided() {
		return shared.NewDomainError(shared.ErrInvalidState.Code, "Credit note is already voided")
	}
	if !cn.RemainingAmount.Equal(cn.TotalAmount) {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			"Credit note has been applied and cannot be voided")
	}
	now := time.Now()
	cn.RemainingAmount = decimal.Zero
	cn.Status = CreditNoteStatusVoided
	cn.VoidedAt = &now
	cn.VoidReason = reason
	cn.AddDomainEvent(NewCreditNoteVoidedEvent(cn))
	return nil
}
