package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryAction is a credit note lifecycle event
type HistoryAction string

const (
	HistoryActionCreated  HistoryAction = "created"
	HistoryActionApplied  HistoryAction = "applied"
	HistoryActionReleased HistoryAction = "released"
	HistoryActionVoided   HistoryAction = "voided"
)

// HistoryMetadata captures the context of a history entry at the time it happened
type HistoryMetadata struct {
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

// Value implements driver.Valuer for storing metadata as JSON
func (m HistoryMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading metadata from JSON
func (m *HistoryMetadata) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*m = HistoryMetadata{}
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan HistoryMetadata: unsupported type")
	}
	if len(bytes) == 0 {
		*m = HistoryMetadata{}
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// CreditNoteHistory is an append-only audit entry for a credit note
type CreditNoteHistory struct {
	ID           uuid.UUID
	CreditNoteID uuid.UUID
	Action       HistoryAction
	ActorID      uuid.UUID
	Metadata     HistoryMetadata
	CreatedAt    time.Time
}

// NewCreditNoteHistory creates a history entry. invoiceID may be uuid.Nil
// when the action concerns no particular invoice.
func NewCreditNoteHistory(
	creditNoteID uuid.UUID,
	action HistoryAction,
	actorID uuid.UUID,
	invoiceID uuid.UUID,
	amount decimal.Decimal,
	reason string,
) *CreditNoteHistory {
	meta := HistoryMetadata{Amount: amount, Reason: reason}
	if invoiceID != uuid.Nil {
		id := invoiceID
		meta.InvoiceID = &id
	}
	return &CreditNoteHistory{
		ID:           uuid.New(),
		CreditNoteID: creditNoteID,
		Action:       action,
		ActorID:      actorID,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
}
