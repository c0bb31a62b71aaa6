package event

import (
	"context"

	"github.com/erp/retailops/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher stores events in the outbox table using the caller's
// transaction, so an event exists exactly when the change that raised it
// committed.
type OutboxPublisher struct {
	serializer *EventSerializer
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer}
}

// Write serializes events and inserts them through tx.
func (p *OutboxPublisher) Write(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return err
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload))
	}
	return NewGormOutboxRepository(tx).Save(ctx, entries...)
}
