package event

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/erp/retailops/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers events to handlers in the server process. It is
// fed either by the outbox relay or, when the relay is disabled, directly by
// the unit of work after commit.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	running  atomic.Bool
}

// NewInMemoryEventBus creates a bus with an empty handler registry
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
}

// Publish runs every matching handler for each event, in order. Handler
// errors and panics are logged; they never fail the publish, because the
// events are already committed.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		for _, h := range b.registry.Handlers(e.EventType()) {
			if err := dispatch(ctx, h, e); err != nil {
				b.logger.Error("Event handler failed",
					zap.String("event_type", e.EventType()),
					zap.String("event_id", e.EventID().String()),
					zap.String("aggregate_id", e.AggregateID().String()),
					zap.String("tenant_id", e.TenantID().String()),
					zap.String("handler", fmt.Sprintf("%T", h)),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Subscribe registers handler for eventTypes, or for its own EventTypes
// when none are given.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Event handler subscribed",
		zap.String("handler", fmt.Sprintf("%T", handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes handler from every event type it was registered for
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
}

// Start marks the bus as running
func (b *InMemoryEventBus) Start(context.Context) error {
	b.running.Store(true)
	b.logger.Info("Event bus started", zap.Int("handlers", b.registry.Len()))
	return nil
}

// Stop marks the bus as stopped
func (b *InMemoryEventBus) Stop(context.Context) error {
	b.running.Store(false)
	b.logger.Info("Event bus stopped")
	return nil
}

// Running reports whether Start was called without a later Stop
func (b *InMemoryEventBus) Running() bool {
	return b.running.Load()
}

// dispatch runs one handler, turning a panic into an error
func dispatch(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
