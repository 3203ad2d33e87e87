package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StatusNotifier delivers invoice status change notifications to the invoice
// creator. Implementations may push to a message channel or just log.
type StatusNotifier interface {
	NotifyStatusChanged(ctx context.Context, notification StatusNotification) error
}

// StatusNotification is the message sent when someone other than the creator
// moves an invoice to a new payment status
type StatusNotification struct {
	RecipientID string    `json:"recipient_id"`
	InvoiceID   string    `json:"invoice_id"`
	InvoiceNo   string    `json:"invoice_no"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// InvoiceStatusChangedHandler turns InvoiceStatusChangedEvent into a
// notification for the invoice creator
type InvoiceStatusChangedHandler struct {
	logger   *zap.Logger
	notifier StatusNotifier
}

// NewInvoiceStatusChangedHandler creates a new handler for invoice status changes
func NewInvoiceStatusChangedHandler(logger *zap.Logger) *InvoiceStatusChangedHandler {
	return &InvoiceStatusChangedHandler{
		logger: logger,
	}
}

// WithNotifier sets the notifier for sending notifications
func (h *InvoiceStatusChangedHandler) WithNotifier(notifier StatusNotifier) *InvoiceStatusChangedHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *InvoiceStatusChangedHandler) EventTypes() []string {
	return []string{ledger.EventTypeInvoiceStatusChanged}
}

// Handle processes an InvoiceStatusChangedEvent
func (h *InvoiceStatusChangedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*ledger.InvoiceStatusChangedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", ledger.EventTypeInvoiceStatusChanged),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeInvoiceStatusChanged, event.EventType())
	}

	notification := StatusNotification{
		RecipientID: changed.RecipientID.String(),
		InvoiceID:   changed.AggregateID().String(),
		InvoiceNo:   changed.InvoiceNo,
		OldStatus:   changed.OldStatus.String(),
		NewStatus:   changed.NewStatus.String(),
		ActorID:     changed.ActorID.String(),
		ActorName:   changed.ActorName,
		Message: fmt.Sprintf("Invoice %s was marked %s by %s",
			changed.InvoiceNo, changed.NewStatus, changed.ActorName),
		OccurredAt: changed.OccurredAt(),
	}

	if h.notifier == nil {
		return nil
	}
	// Delivery failures are logged only; the ledger write has already committed.
	if err := h.notifier.NotifyStatusChanged(ctx, notification); err != nil {
		h.logger.Warn("failed to send invoice status notification",
			zap.String("invoice_id", notification.InvoiceID),
			zap.String("recipient_id", notification.RecipientID),
			zap.Error(err),
		)
		return nil
	}
	h.logger.Info("invoice status notification sent",
		zap.String("invoice_id", notification.InvoiceID),
		zap.String("new_status", notification.NewStatus),
	)
	return nil
}

// Ensure InvoiceStatusChangedHandler implements shared.EventHandler
var _ shared.EventHandler = (*InvoiceStatusChangedHandler)(nil)

// LoggingStatusNotifier writes notifications to the log. It is used when no
// message channel is configured.
type LoggingStatusNotifier struct {
	logger *zap.Logger
}

// NewLoggingStatusNotifier creates a new logging notifier
func NewLoggingStatusNotifier(logger *zap.Logger) *LoggingStatusNotifier {
	return &LoggingStatusNotifier{
		logger: logger,
	}
}

// NotifyStatusChanged logs the notification
func (n *LoggingStatusNotifier) NotifyStatusChanged(ctx context.Context, notification StatusNotification) error {
	n.logger.Info("invoice status changed",
		zap.String("recipient_id", notification.RecipientID),
		zap.String("invoice_no", notification.InvoiceNo),
		zap.String("old_status", notification.OldStatus),
		zap.String("new_status", notification.NewStatus),
		zap.String("actor", notification.ActorName),
	)
	return nil
}

// Ensure LoggingStatusNotifier implements StatusNotifier
var _ StatusNotifier = (*LoggingStatusNotifier)(nil)
