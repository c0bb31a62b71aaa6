package shared

import "context"

// EventHandler reacts to delivered events. Delivery is at least once, so
// Handle must tolerate seeing the same EventID twice.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants; empty means all.
	EventTypes() []string
}

// EventPublisher hands events to whatever delivers them: the outbox inside
// a unit of work, or the bus and Pub/Sub from the relay.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is an in-process publisher with handler subscription.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
