package ledger

import (
	"fmt"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// ComputeInvoiceStatus derives the invoice status. Refunds lower what the
// patient owes; payments and applied credits count toward settling it.
func ComputeInvoiceStatus(total, paid, creditApplied, refunded decimal.Decimal) InvoiceStatus {
	owed := decimal.Max(decimal.Zero, total.Sub(refunded))
	paidEquivalent := paid.Add(creditApplied)
	switch {
	case paidEquivalent.LessThanOrEqual(decimal.Zero):
		return InvoiceStatusUnpaid
	case paidEquivalent.Add(Epsilon).GreaterThanOrEqual(owed):
		return InvoiceStatusPaid
	default:
		return InvoiceStatusPartial
	}
}

// Invoice is the aggregate root for one billing event
type Invoice struct {
	shared.OwnedAggregateRoot
	InvoiceNo           string
	PatientID           uuid.UUID
	AppointmentID       *uuid.UUID
	Items               []InvoiceItem
	Subtotal            decimal.Decimal
	Discount            decimal.Decimal
	DiscountType        DiscountType
	DiscountAmount      decimal.Decimal
	TotalAmount         decimal.Decimal
	PaidAmount          decimal.Decimal
	CreditAppliedAmount decimal.Decimal
	RefundedAmount      decimal.Decimal
	Status              InvoiceStatus
	Notes               string
}

// NewInvoice creates an invoice from priced items. Credits are applied
// afterwards with ApplyCredit.
func NewInvoice(
	createdBy uuid.UUID,
	invoiceNo string,
	patientID uuid.UUID,
	items []InvoiceItem,
	discount Discount,
	paidAmount decimal.Decimal,
	notes string,
) (*Invoice, error) {
	if invoiceNo == "" {
		return nil, shared.NewValidationError("Invoice number cannot be empty")
	}
	if patientID == uuid.Nil {
		return nil, shared.NewValidationError("Patient is required")
	}
	if paidAmount.IsNegative() {
		return nil, shared.NewValidationError("Paid amount cannot be negative")
	}

	inv := &Invoice{
		OwnedAggregateRoot:  shared.NewOwnedAggregateRoot(createdBy),
		InvoiceNo:           invoiceNo,
		PatientID:           patientID,
		PaidAmount:          Round2(paidAmount),
		CreditAppliedAmount: decimal.Zero,
		RefundedAmount:      decimal.Zero,
		Notes:               notes,
	}
	if err := inv.setItems(items, discount); err != nil {
		return nil, err
	}
	if err := inv.checkBalance(); err != nil {
		return nil, err
	}
	inv.Status = inv.computeStatus()

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

func (i *Invoice) setItems(items []InvoiceItem, discount Discount) error {
	if len(items) == 0 {
		return shared.NewValidationError("Invoice must have at least one item")
	}
	discount = discount.Normalized()
	if err := discount.Validate(); err != nil {
		return err
	}

	for idx := range items {
		items[idx].InvoiceID = i.ID
	}
	totals := CalculateTotals(lo.Map(items, func(it InvoiceItem, _ int) decimal.Decimal {
		return it.Total
	}), discount)

	i.Items = items
	i.Subtotal = totals.Subtotal
	i.Discount = discount.Value
	i.DiscountType = discount.Type
	i.DiscountAmount = totals.DiscountAmount
	i.TotalAmount = totals.Total
	return nil
}

// Revise replaces items, invoice discount, paid amount and notes with a full
// new version. Credit applications must have been released beforehand.
func (i *Invoice) Revise(items []InvoiceItem, discount Discount, paidAmount decimal.Decimal, notes string) error {
	if paidAmount.IsNegative() {
		return shared.NewValidationError("Paid amount cannot be negative")
	}
	if err := i.setItems(items, discount); err != nil {
		return err
	}
	if i.RefundedAmount.GreaterThan(i.TotalAmount.Add(Epsilon)) {
		return shared.NewValidationError(fmt.Sprintf(
			"Invoice total cannot be less than the amount already refunded (%s)", i.RefundedAmount.StringFixed(2)))
	}
	i.PaidAmount = Round2(paidAmount)
	i.Notes = notes
	if err := i.checkBalance(); err != nil {
		return err
	}
	i.AddDomainEvent(NewInvoiceUpdatedEvent(i))
	return nil
}

// ChangePatient moves the invoice to another patient. Credit notes issued
// from the invoice are tied to its patient, so a refunded invoice keeps it.
func (i *Invoice) ChangePatient(patientID uuid.UUID) error {
	if patientID == i.PatientID {
		return nil
	}
	if patientID == uuid.Nil {
		return shared.NewValidationError("Patient is required")
	}
	if i.RefundedAmount.GreaterThan(decimal.Zero) {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			"Cannot change the patient of an invoice with issued credit notes")
	}
	i.PatientID = patientID
	return nil
}

// LinkAppointment sets or clears the linked appointment
func (i *Invoice) LinkAppointment(appointmentID *uuid.UUID) {
	i.AppointmentID = appointmentID
}

// Allocation returns the per-product quantities this invoice holds
func (i *Invoice) Allocation() Allocation {
	return AllocationOf(i.Items)
}

// MaxRefundable is the part of the total not yet refunded
func (i *Invoice) MaxRefundable() decimal.Decimal {
	return decimal.Max(decimal.Zero, i.TotalAmount.Sub(i.RefundedAmount))
}

// Outstanding is what the patient still owes after refunds
func (i *Invoice) Outstanding() decimal.Decimal {
	return decimal.Max(decimal.Zero, i.MaxRefundable().Sub(i.PaidAmount).Sub(i.CreditAppliedAmount))
}

// ApplyCredit records credit spent on this invoice
func (i *Invoice) ApplyCredit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Credit amount must be positive")
	}
	i.CreditAppliedAmount = i.CreditAppliedAmount.Add(Round2(amount))
	return i.checkBalance()
}

// ReleaseCredit removes credit previously applied to this invoice
func (i *Invoice) ReleaseCredit(amount decimal.Decimal) {
	i.CreditAppliedAmount = decimal.Max(decimal.Zero, i.CreditAppliedAmount.Sub(Round2(amount)))
}

// AddRefund records a credit note issued from this invoice
func (i *Invoice) AddRefund(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Refund amount must be positive")
	}
	next := i.RefundedAmount.Add(Round2(amount))
	if next.GreaterThan(i.TotalAmount.Add(Epsilon)) {
		return shared.NewValidationError("Refunds cannot exceed the invoice total")
	}
	i.RefundedAmount = decimal.Min(next, i.TotalAmount)
	return nil
}

// RemoveRefund reverses a refund when its credit note is voided
func (i *Invoice) RemoveRefund(amount decimal.Decimal) {
	i.RefundedAmount = decimal.Max(decimal.Zero, i.RefundedAmount.Sub(Round2(amount)))
}

// RecordPayment adds a direct payment against the outstanding balance
func (i *Invoice) RecordPayment(amount decimal.Decimal) error {
	amount = Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Payment amount must be positive")
	}
	outstanding := i.Outstanding()
	if outstanding.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.ErrInvalidState.Code, "Invoice has no outstanding balance")
	}
	if !WithinTolerance(amount, outstanding) {
		return shared.NewValidationError(fmt.Sprintf(
			"Payment exceeds outstanding balance of %s", outstanding.StringFixed(2)))
	}
	i.PaidAmount = i.PaidAmount.Add(decimal.Min(amount, outstanding))
	i.AddDomainEvent(NewInvoicePaymentRecordedEvent(i, amount))
	return nil
}

// RefreshStatus recomputes the status from the money fields and reports the
// status before and after.
func (i *Invoice) RefreshStatus() (before, after InvoiceStatus) {
	before = i.Status
	i.Status = i.computeStatus()
	return before, i.Status
}

// RecordStatusChange raises InvoiceStatusChangedEvent when the status moved
// away from before and the actor is someone other than the creator.
func (i *Invoice) RecordStatusChange(before InvoiceStatus, actor Actor) bool {
	if before == i.Status || i.IsOwnedBy(actor.ID) {
		return false
	}
	i.AddDomainEvent(NewInvoiceStatusChangedEvent(i, before, actor))
	return true
}

func (i *Invoice) computeStatus() InvoiceStatus {
	return ComputeInvoiceStatus(i.TotalAmount, i.PaidAmount, i.CreditAppliedAmount, i.RefundedAmount)
}

// checkBalance enforces paid + credit <= total (within tolerance)
func (i *Invoice) checkBalance() error {
	if !WithinTolerance(i.PaidAmount.Add(i.CreditAppliedAmount), i.TotalAmount) {
		return shared.NewDomainError(ErrCodeCreditExceedsBalance,
			"Payment and credits exceed invoice total")
	}
	return nil
}
