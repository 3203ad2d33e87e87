package telemetry

import (
	"context"
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics turns committed ledger events into OpenTelemetry instruments.
// It subscribes to the event bus like any other handler, so nothing is
// counted for a rolled-back operation.
type LedgerMetrics struct {
	events        *Counter
	statusChanges *Counter
	billed        *AmountCounter
	paid          *AmountCounter
	credited      *AmountCounter
	creditApplied *AmountCounter
	released      *AmountCounter
	voided        *AmountCounter
	deliveryLag   *Histogram
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	var (
		m   LedgerMetrics
		err error
	)
	if m.events, err = NewCounter(meter, "clinic.ledger.events", "Ledger events delivered", "{event}"); err != nil {
		return nil, err
	}
	if m.statusChanges, err = NewCounter(meter, "clinic.invoice.status_changes", "Invoice status changes made by someone other than the creator", "{change}"); err != nil {
		return nil, err
	}
	amounts := []struct {
		target      **AmountCounter
		name        string
		description string
	}{
		{&m.billed, "clinic.invoice.billed", "Invoice totals at creation"},
		{&m.paid, "clinic.invoice.payments", "Direct payments recorded against invoices"},
		{&m.credited, "clinic.credit_note.issued", "Credit issued as refunds"},
		{&m.creditApplied, "clinic.credit_note.applied", "Credit spent on invoices"},
		{&m.released, "clinic.credit_note.released", "Credit released back to notes"},
		{&m.voided, "clinic.credit_note.voided", "Credit cancelled by voiding notes"},
	}
	for _, a := range amounts {
		if *a.target, err = NewAmountCounter(meter, a.name, a.description); err != nil {
			return nil, err
		}
	}
	m.deliveryLag, err = NewHistogram(meter, HistogramOpts{
		Name:        "clinic.ledger.event_lag",
		Description: "Time between an event being raised and handled",
		Unit:        "s",
		Boundaries:  DurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EventTypes returns nil: the handler counts every ledger event.
func (m *LedgerMetrics) EventTypes() []string {
	return nil
}

// Handle records one event.
func (m *LedgerMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	m.events.Inc(ctx, AttrEventType.String(event.EventType()))
	m.deliveryLag.RecordDuration(ctx, time.Since(event.OccurredAt()), AttrEventType.String(event.EventType()))

	switch e := event.(type) {
	case *ledger.InvoiceCreatedEvent:
		m.billed.Add(ctx, e.TotalAmount.InexactFloat64(), AttrStatus.String(string(e.Status)))
	case *ledger.InvoicePaymentRecordedEvent:
		m.paid.Add(ctx, e.Amount.InexactFloat64())
	case *ledger.InvoiceStatusChangedEvent:
		m.statusChanges.Inc(ctx, AttrStatus.String(string(e.NewStatus)))
	case *ledger.CreditNoteIssuedEvent:
		m.credited.Add(ctx, e.TotalAmount.InexactFloat64(), AttrCreditType.String(string(e.Type)))
	case *ledger.CreditNoteAppliedEvent:
		m.creditApplied.Add(ctx, e.Amount.InexactFloat64())
	case *ledger.CreditNoteReleasedEvent:
		m.released.Add(ctx, e.Amount.InexactFloat64())
	case *ledger.CreditNoteVoidedEvent:
		m.voided.Add(ctx, e.TotalAmount.InexactFloat64())
	}
	return nil
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)
