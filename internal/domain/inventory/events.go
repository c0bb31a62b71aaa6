package inventory

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypeStockBalance = "StockBalance"
	AggregateTypeBatch        = "Batch"
)

const (
	EventTypeLowStock      = "LowStock"
	EventTypeExpiryAlert   = "ExpiryAlert"
	EventTypeBatchProduced = "BatchProduced"
)

// LowStockEvent is raised when an outbound movement leaves on-hand below the
// location's threshold.
type LowStockEvent struct {
	shared.BaseDomainEvent
	LocationID uuid.UUID       `json:"location_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	BatchID    *uuid.UUID      `json:"batch_id,omitempty"`
	OnHand     decimal.Decimal `json:"on_hand"`
	Threshold  decimal.Decimal `json:"threshold"`
}

// NewLowStockEvent creates the low stock event
func NewLowStockEvent(key BalanceKey, onHand, threshold decimal.Decimal) *LowStockEvent {
	return &LowStockEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLowStock, AggregateTypeStockBalance, key.ProductID, key.TenantID),
		LocationID:      key.LocationID,
		ProductID:       key.ProductID,
		BatchID:         key.Batch(),
		OnHand:          onHand,
		Threshold:       threshold,
	}
}

// ExpiryAlertEvent warns that a batch with stock on hand expires soon.
type ExpiryAlertEvent struct {
	shared.BaseDomainEvent
	BatchID       uuid.UUID       `json:"batch_id"`
	BatchNumber   string          `json:"batch_number"`
	ProductID     uuid.UUID       `json:"product_id"`
	LocationID    uuid.UUID       `json:"location_id"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	DaysRemaining int             `json:"days_remaining"`
	OnHand        decimal.Decimal `json:"on_hand"`
}

// NewExpiryAlertEvent creates the expiry alert event
func NewExpiryAlertEvent(b *Batch, locationID uuid.UUID, onHand decimal.Decimal, now time.Time) *ExpiryAlertEvent {
	var expiry time.Time
	if b.ExpiryDate != nil {
		expiry = *b.ExpiryDate
	}
	return &ExpiryAlertEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpiryAlert, AggregateTypeBatch, b.ID, b.TenantID),
		BatchID:         b.ID,
		BatchNumber:     b.BatchNumber,
		ProductID:       b.ProductID,
		LocationID:      locationID,
		ExpiryDate:      expiry,
		DaysRemaining:   b.DaysUntilExpiry(now),
		OnHand:          onHand,
	}
}

// BatchProducedEvent is raised when a production batch enters the ledger.
type BatchProducedEvent struct {
	shared.BaseDomainEvent
	BatchID     uuid.UUID       `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	ProductID   uuid.UUID       `json:"product_id"`
	LocationID  uuid.UUID       `json:"location_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// NewBatchProducedEvent creates the batch produced event
func NewBatchProducedEvent(b *Batch) *BatchProducedEvent {
	return &BatchProducedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchProduced, AggregateTypeBatch, b.ID, b.TenantID),
		BatchID:         b.ID,
		BatchNumber:     b.BatchNumber,
		ProductID:       b.ProductID,
		LocationID:      b.LocationID,
		Quantity:        b.Quantity,
		UnitCost:        b.UnitCost,
	}
}
