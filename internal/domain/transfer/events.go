package transfer

import (
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants for events
const (
	AggregateTypeTransfer      = "Transfer"
	AggregateTypeReturnRequest = "ReturnRequest"
	AggregateTypeDispute       = "Dispute"
)

// Event type constants
const (
	EventTypeTransferCreated  = "TransferCreated"
	EventTypeTransferSent     = "TransferSent"
	EventTypeTransferReceived = "TransferReceived"
	EventTypeReturnRequested  = "ReturnRequested"
	EventTypeDisputeCreated   = "DisputeCreated"
)

// EventLine is an item quantity carried by transfer events.
type EventLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	BatchID   *uuid.UUID      `json:"batch_id,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// TransferCreatedEvent is raised when a transfer is drafted.
type TransferCreatedEvent struct {
	shared.BaseDomainEvent
	TransferNumber string      `json:"transfer_number"`
	FromLocationID uuid.UUID   `json:"from_location_id"`
	ToLocationID   uuid.UUID   `json:"to_location_id"`
	Items          []EventLine `json:"items"`
}

// NewTransferCreatedEvent creates the transfer created event
func NewTransferCreatedEvent(t *Transfer) *TransferCreatedEvent {
	lines := make([]EventLine, 0, len(t.Items))
	for _, it := range t.Items {
		lines = append(lines, EventLine{ProductID: it.ProductID, BatchID: it.BatchID, Quantity: it.QuantityOrdered})
	}
	return &TransferCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransferCreated, AggregateTypeTransfer, t.ID, t.TenantID),
		TransferNumber:  t.TransferNumber,
		FromLocationID:  t.FromLocationID,
		ToLocationID:    t.ToLocationID,
		Items:           lines,
	}
}

// TransferSentEvent is raised when stock leaves the source location.
type TransferSentEvent struct {
	shared.BaseDomainEvent
	TransferNumber string    `json:"transfer_number"`
	FromLocationID uuid.UUID `json:"from_location_id"`
	ToLocationID   uuid.UUID `json:"to_location_id"`
	SentBy         uuid.UUID `json:"sent_by"`
}

// NewTransferSentEvent creates the transfer sent event
func NewTransferSentEvent(t *Transfer) *TransferSentEvent {
	e := &TransferSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransferSent, AggregateTypeTransfer, t.ID, t.TenantID),
		TransferNumber:  t.TransferNumber,
		FromLocationID:  t.FromLocationID,
		ToLocationID:    t.ToLocationID,
	}
	if t.SentBy != nil {
		e.SentBy = *t.SentBy
	}
	return e
}

// TransferReceivedEvent is raised for every receipt, full or partial.
type TransferReceivedEvent struct {
	shared.BaseDomainEvent
	TransferNumber string      `json:"transfer_number"`
	ToLocationID   uuid.UUID   `json:"to_location_id"`
	Items          []EventLine `json:"items"`
	Complete       bool        `json:"complete"`
}

// NewTransferReceivedEvent creates the transfer received event
func NewTransferReceivedEvent(t *Transfer, plan []Receipt, complete bool) *TransferReceivedEvent {
	lines := make([]EventLine, 0, len(plan))
	for _, r := range plan {
		lines = append(lines, EventLine{ProductID: r.Item.ProductID, BatchID: r.Item.BatchID, Quantity: r.Quantity})
	}
	return &TransferReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransferReceived, AggregateTypeTransfer, t.ID, t.TenantID),
		TransferNumber:  t.TransferNumber,
		ToLocationID:    t.ToLocationID,
		Items:           lines,
		Complete:        complete,
	}
}

// ReturnRequestedEvent is raised when a shop asks to send stock back.
type ReturnRequestedEvent struct {
	shared.BaseDomainEvent
	ReturnNumber string    `json:"return_number"`
	ShopID       uuid.UUID `json:"shop_id"`
	StoreID      uuid.UUID `json:"store_id"`
	ItemCount    int       `json:"item_count"`
}

// NewReturnRequestedEvent creates the return requested event
func NewReturnRequestedEvent(r *ReturnRequest) *ReturnRequestedEvent {
	return &ReturnRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnRequested, AggregateTypeReturnRequest, r.ID, r.TenantID),
		ReturnNumber:    r.ReturnNumber,
		ShopID:          r.ShopID,
		StoreID:         r.StoreID,
		ItemCount:       len(r.Items),
	}
}

// DisputeCreatedEvent is raised when a dispute is opened.
type DisputeCreatedEvent struct {
	shared.BaseDomainEvent
	DisputeNumber string           `json:"dispute_number"`
	Reference     shared.Reference `json:"reference"`
	Subject       string           `json:"subject"`
	RaisedBy      uuid.UUID        `json:"raised_by"`
}

// NewDisputeCreatedEvent creates the dispute created event
func NewDisputeCreatedEvent(d *Dispute) *DisputeCreatedEvent {
	return &DisputeCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDisputeCreated, AggregateTypeDispute, d.ID, d.TenantID),
		DisputeNumber:   d.DisputeNumber,
		Reference:       d.Reference,
		Subject:         d.Subject,
		RaisedBy:        d.CreatedBy,
	}
}
