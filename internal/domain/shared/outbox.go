package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of a stored event.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxSent       OutboxStatus = "SENT"
	OutboxFailed     OutboxStatus = "FAILED"
	OutboxDead       OutboxStatus = "DEAD"
)

const (
	DefaultOutboxMaxAttempts = 5
	DefaultOutboxBackoff     = time.Second
)

// OutboxEntry is a domain event persisted in the same unit of work as the
// state change that produced it. A relay delivers it after commit.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	LastError     string
	NextAttemptAt *time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event for later delivery.
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxPending,
		MaxAttempts:   DefaultOutboxMaxAttempts,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Claim moves a pending or failed entry to processing.
func (e *OutboxEntry) Claim() error {
	if e.Status != OutboxPending && e.Status != OutboxFailed {
		return errors.New("only pending or failed outbox entries can be claimed")
	}
	e.Status = OutboxProcessing
	e.UpdatedAt = time.Now()
	return nil
}

// MarkSent records successful delivery.
func (e *OutboxEntry) MarkSent() {
	now := time.Now()
	e.Status = OutboxSent
	e.SentAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a failed delivery and schedules the next attempt with
// exponential backoff. After MaxAttempts the entry is dead.
func (e *OutboxEntry) MarkFailed(reason string) {
	e.Attempts++
	e.LastError = reason
	e.UpdatedAt = time.Now()

	if e.Attempts >= e.MaxAttempts {
		e.Status = OutboxDead
		e.NextAttemptAt = nil
		return
	}
	e.Status = OutboxFailed
	next := e.UpdatedAt.Add(DefaultOutboxBackoff << uint(e.Attempts-1))
	e.NextAttemptAt = &next
}

// OutboxRepository stores and claims outbox entries.
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// ClaimDue atomically claims up to limit pending entries plus failed
	// entries whose next attempt is due before the given time.
	ClaimDue(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}
