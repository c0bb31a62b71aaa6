package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and audit timestamps.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a fresh id and creation time.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID returns the entity id
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// Touch bumps UpdatedAt.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// AggregateRoot is a document the ledger coordinator loads, changes and
// saves under an optimistic version check. Events recorded on it are
// written to the outbox in the same transaction as the save.
type AggregateRoot interface {
	GetID() uuid.UUID
	GetVersion() int
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot holds the version and the events not yet saved.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the version the document was loaded or last saved at
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// MarkChanged records a state change: UpdatedAt moves and the version the
// next save must replace goes up by one.
func (a *BaseAggregateRoot) MarkChanged() {
	a.Touch()
	a.Version++
}

// AddDomainEvent records an event to be written with the next save
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns the events recorded since the last clear
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops the recorded events once they are in the outbox
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// TenantAggregateRoot scopes a document to a tenant and records who
// created it. New documents start at version 1.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID
	CreatedBy uuid.UUID
}

// NewTenantAggregateRoot creates the root of a new tenant document
func NewTenantAggregateRoot(tenantID, createdBy uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1},
		TenantID:          tenantID,
		CreatedBy:         createdBy,
	}
}
