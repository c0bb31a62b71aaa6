package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

// NewRecordingPublisher creates an empty recorder.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records events, or returns the configured error.
func (p *RecordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

// SetError makes Publish fail with err.
func (p *RecordingPublisher) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Events returns a copy of the recorded events.
func (p *RecordingPublisher) Events() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

// OfType returns the recorded events of one type.
func (p *RecordingPublisher) OfType(eventType string) []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, e := range p.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Types returns the recorded event types in publish order.
func (p *RecordingPublisher) Types() []string {
	events := p.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}

// Reset forgets every recorded event.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.err = nil
}

// MockEventHandler records the events it handles.
type MockEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewMockEventHandler subscribes to eventTypes, or to everything if none.
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{eventTypes: eventTypes}
}

func (h *MockEventHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *MockEventHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// SetError makes Handle fail with err after recording the event.
func (h *MockEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// HandledCount returns how many events were handled.
func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// Handled returns a copy of the handled events.
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.DomainEvent, len(h.handled))
	copy(out, h.handled)
	return out
}

// TestEvent is a minimal domain event.
type TestEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

// NewTestEvent creates a TestEvent of eventType for tenantID.
func NewTestEvent(eventType string, tenantID uuid.UUID) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:            uuid.New(),
			Type:          eventType,
			TenantIDValue: tenantID,
			Timestamp:     time.Now(),
			AggID:         uuid.New(),
			AggType:       "TestAggregate",
		},
		Data: "test-data",
	}
}
