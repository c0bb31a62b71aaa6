package event

import (
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/transfer"
)

// RegisterAllEvents registers every domain event with the serializer. The
// outbox relay can only deliver types registered here.
func RegisterAllEvents(serializer *EventSerializer) {
	// Ledger
	serializer.Register(inventory.EventTypeLowStock, &inventory.LowStockEvent{})
	serializer.Register(inventory.EventTypeExpiryAlert, &inventory.ExpiryAlertEvent{})
	serializer.Register(inventory.EventTypeBatchProduced, &inventory.BatchProducedEvent{})

	// Transfers, returns and disputes
	serializer.Register(transfer.EventTypeTransferCreated, &transfer.TransferCreatedEvent{})
	serializer.Register(transfer.EventTypeTransferSent, &transfer.TransferSentEvent{})
	serializer.Register(transfer.EventTypeTransferReceived, &transfer.TransferReceivedEvent{})
	serializer.Register(transfer.EventTypeReturnRequested, &transfer.ReturnRequestedEvent{})
	serializer.Register(transfer.EventTypeDisputeCreated, &transfer.DisputeCreatedEvent{})

	// Point of sale
	serializer.Register(sales.EventTypeSaleCompleted, &sales.SaleCompletedEvent{})
	serializer.Register(sales.EventTypeSaleVoided, &sales.SaleVoidedEvent{})
	serializer.Register(sales.EventTypeRefundCompleted, &sales.RefundCompletedEvent{})
	serializer.Register(sales.EventTypeMarginViolated, &sales.MarginViolatedEvent{})
	serializer.Register(sales.EventTypeCreditLimitExceeded, &sales.CreditLimitExceededEvent{})

	// Cash
	serializer.Register(cash.EventTypeRemittanceSubmitted, &cash.RemittanceSubmittedEvent{})
}

// NewRegisteredSerializer returns a serializer with every domain event
// registered.
func NewRegisteredSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterAllEvents(s)
	return s
}
