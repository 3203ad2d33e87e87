package event

import (
	"context"
	"sync"

	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const defaultQueueSize = 256

// Option configures an InMemoryEventBus
type Option func(*InMemoryEventBus)

// WithQueueSize sets how many events may wait for delivery once the bus is started
func WithQueueSize(size int) Option {
	return func(b *InMemoryEventBus) {
		if size > 0 {
			b.queueSize = size
		}
	}
}

type queuedEvent struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus delivers domain events to in-process handlers.
//
// Before Start and after Stop, Publish delivers synchronously. While started,
// events are queued and a single worker delivers them in publish order, so a
// slow handler never holds up the request that committed the change. Handler
// errors and panics are logged and never reach the publisher.
type InMemoryEventBus struct {
	logger    *zap.Logger
	queueSize int

	handlersMu sync.RWMutex
	handlers   map[string][]shared.EventHandler
	wildcard   []shared.EventHandler

	stateMu sync.RWMutex
	running bool
	queue   chan queuedEvent
	wg      sync.WaitGroup
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...Option) *InMemoryEventBus {
	b := &InMemoryEventBus{
		logger:    logger,
		queueSize: defaultQueueSize,
		handlers:  make(map[string][]shared.EventHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish hands events to every handler subscribed to their type
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	if !b.running {
		for _, e := range events {
			b.deliver(ctx, e)
		}
		return nil
	}

	// handlers outlive the request that published the event
	detached := context.WithoutCancel(ctx)
	for _, e := range events {
		b.queue <- queuedEvent{ctx: detached, event: e}
	}
	return nil
}

// Subscribe registers a handler. Without explicit event types the handler's
// own EventTypes are used; an empty list subscribes to every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.handlersMu.Lock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	}
	for _, t := range eventTypes {
		b.handlers[t] = append(b.handlers[t], handler)
	}
	b.handlersMu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler from every event type
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	b.wildcard = without(b.wildcard, handler)
	for t, hs := range b.handlers {
		if rest := without(hs, handler); len(rest) > 0 {
			b.handlers[t] = rest
		} else {
			delete(b.handlers, t)
		}
	}
}

// Start switches the bus to queued delivery
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	if b.running {
		return nil
	}

	b.queue = make(chan queuedEvent, b.queueSize)
	b.running = true
	b.wg.Add(1)
	go b.work(b.queue)

	b.logger.Info("event bus started", zap.Int("queue_size", b.queueSize))
	return nil
}

// Stop delivers what is still queued and returns to synchronous delivery.
// It gives up waiting when ctx is done.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stateMu.Lock()
	if !b.running {
		b.stateMu.Unlock()
		return nil
	}
	b.running = false
	close(b.queue)
	b.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus stopped before the queue was drained")
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) work(queue <-chan queuedEvent) {
	defer b.wg.Done()
	for q := range queue {
		b.deliver(q.ctx, q.event)
	}
}

func (b *InMemoryEventBus) deliver(ctx context.Context, e shared.DomainEvent) {
	for _, handler := range b.handlersFor(e.EventType()) {
		if err := b.dispatch(ctx, handler, e); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.Error(err),
			)
		}
	}
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()

	typed := b.handlers[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	out = append(out, typed...)
	return append(out, b.wildcard...)
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, e shared.DomainEvent) (err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "event", e.EventType(),
		telemetry.SpanAttrEventID, e.EventID(),
		telemetry.SpanAttrAggregateType, e.AggregateType(),
		telemetry.SpanAttrAggregateID, e.AggregateID(),
	)
	defer func() { telemetry.EndSpan(span, err) }()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", e.EventType()),
				zap.Any("panic", r),
			)
		}
	}()
	return handler.Handle(ctx, e)
}

func without(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	out := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			out = append(out, h)
		}
	}
	return out
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
