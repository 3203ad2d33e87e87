package ledger

// Error codes specific to the ledger. Generic codes live in shared.
const (
	ErrCodeCreditExceedsBalance     = "CREDIT_EXCEEDS_BALANCE"
	ErrCodeCreditNoteUnavailable    = "CREDIT_NOTE_UNAVAILABLE"
	ErrCodePatientMismatch          = "PATIENT_MISMATCH"
	ErrCodeAppointmentUnavailable   = "APPOINTMENT_UNAVAILABLE"
	ErrCodeNothingToRefund          = "NOTHING_TO_REFUND"
	ErrCodeInvoiceHasCreditActivity = "INVOICE_HAS_CREDIT_ACTIVITY"
)
