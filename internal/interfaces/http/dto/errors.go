package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is used when a dependency such as the database is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBusinessRule        = "ERR_BUSINESS_RULE"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
	ErrCodeInsufficientBalance = "ERR_INSUFFICIENT_BALANCE"
)

// Ledger error codes
const (
	// ErrCodeCreditExceedsBalance is used when a credit amount is larger than
	// what the note has left or the invoice still owes
	ErrCodeCreditExceedsBalance = "ERR_CREDIT_EXCEEDS_BALANCE"
	// ErrCodeCreditNoteUnavailable is used for closed or voided credit notes
	ErrCodeCreditNoteUnavailable = "ERR_CREDIT_NOTE_UNAVAILABLE"
	// ErrCodePatientMismatch is used when a credit note belongs to another patient
	ErrCodePatientMismatch = "ERR_PATIENT_MISMATCH"
	// ErrCodeAppointmentUnavailable is used when an appointment is missing,
	// belongs to another patient or is already invoiced
	ErrCodeAppointmentUnavailable = "ERR_APPOINTMENT_UNAVAILABLE"
	// ErrCodeNothingToRefund is used when an invoice has no payment to refund
	ErrCodeNothingToRefund = "ERR_NOTHING_TO_REFUND"
	// ErrCodeInvoiceHasCreditActivity blocks deleting an invoice that issued
	// or received credit
	ErrCodeInvoiceHasCreditActivity = "ERR_INVOICE_HAS_CREDIT_ACTIVITY"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	// Validation errors -> 422 Unprocessable Entity
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeValidationRequired: http.StatusUnprocessableEntity,
	ErrCodeValidationFormat:   http.StatusUnprocessableEntity,
	ErrCodeValidationRange:    http.StatusUnprocessableEntity,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeTokenRevoked: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:           http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:           http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance:    http.StatusUnprocessableEntity,
	ErrCodeCreditExceedsBalance:   http.StatusUnprocessableEntity,
	ErrCodeCreditNoteUnavailable:  http.StatusUnprocessableEntity,
	ErrCodePatientMismatch:        http.StatusUnprocessableEntity,
	ErrCodeAppointmentUnavailable: http.StatusUnprocessableEntity,
	ErrCodeNothingToRefund:        http.StatusUnprocessableEntity,

	ErrCodeInvoiceHasCreditActivity: http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusUnprocessableEntity,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                   ErrCodeNotFound,
	"INVALID_INPUT":               ErrCodeInvalidInput,
	"INVALID_STATE":               ErrCodeInvalidState,
	"UNAUTHORIZED":                ErrCodeUnauthorized,
	"FORBIDDEN":                   ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":        ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":          ErrCodeInsufficientStock,
	"INSUFFICIENT_BALANCE":        ErrCodeInsufficientBalance,
	"VALIDATION_ERROR":            ErrCodeValidation,
	"BAD_REQUEST":                 ErrCodeBadRequest,
	"INTERNAL_ERROR":              ErrCodeInternal,
	"CREDIT_EXCEEDS_BALANCE":      ErrCodeCreditExceedsBalance,
	"CREDIT_NOTE_UNAVAILABLE":     ErrCodeCreditNoteUnavailable,
	"PATIENT_MISMATCH":            ErrCodePatientMismatch,
	"APPOINTMENT_UNAVAILABLE":     ErrCodeAppointmentUnavailable,
	"NOTHING_TO_REFUND":           ErrCodeNothingToRefund,
	"INVOICE_HAS_CREDIT_ACTIVITY": ErrCodeInvoiceHasCreditActivity,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
