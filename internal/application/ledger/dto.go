package ledger

import (
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppendRequest asks the ledger for one movement. Sub-quantities are signed
// deltas; quantities in and out are non-negative.
type AppendRequest struct {
	Key            inventory.BalanceKey
	Kind           inventory.MovementKind
	QuantityIn     decimal.Decimal
	QuantityOut    decimal.Decimal
	ReservedDelta  decimal.Decimal
	InTransitDelta decimal.Decimal
	DamagedDelta   decimal.Decimal
	UnitCost       *decimal.Decimal
	Reference      shared.Reference
	ActorID        uuid.UUID
	Notes          string
	// AllowNegative lets on-hand drop below zero.
	AllowNegative bool
	// ApplyNegativeStockPolicy decides AllowNegative from the location's
	// negative-stock behavior. A warn outcome is recorded as an advisory.
	ApplyNegativeStockPolicy bool
	// RequireAvailable rejects the movement when available stock does not
	// cover the net outflow plus any increase of the reservation.
	RequireAvailable bool
}

// ProductionRequest records a production batch.
type ProductionRequest struct {
	TenantID       uuid.UUID        `json:"tenant_id" validate:"required"`
	ProductID      uuid.UUID        `json:"product_id" validate:"required"`
	LocationID     uuid.UUID        `json:"location_id" validate:"required"`
	BatchNumber    string           `json:"batch_number" validate:"required,max=100"`
	ProductionDate time.Time        `json:"production_date"`
	ExpiryDate     *time.Time       `json:"expiry_date"`
	Quantity       decimal.Decimal  `json:"quantity"`
	BulkPrice      decimal.Decimal  `json:"bulk_price"`
	UnitCost       *decimal.Decimal `json:"unit_cost"`
}

// ReservationRequest reserves or releases stock at one key.
type ReservationRequest struct {
	Key       inventory.BalanceKey `json:"-"`
	Quantity  decimal.Decimal      `json:"quantity"`
	Reference shared.Reference     `json:"reference"`
	Notes     string               `json:"notes" validate:"max=500"`
}

// AdjustmentRequest corrects on-hand by a signed delta.
type AdjustmentRequest struct {
	Key      inventory.BalanceKey `json:"-"`
	Delta    decimal.Decimal      `json:"delta"`
	UnitCost *decimal.Decimal     `json:"unit_cost"`
	Reason   string               `json:"reason" validate:"required,max=500"`
}

// WriteOffRequest moves stock out of on-hand for damage or expiry.
type WriteOffRequest struct {
	Key      inventory.BalanceKey   `json:"-"`
	Kind     inventory.MovementKind `json:"kind" validate:"required,oneof=damage expiry"`
	Quantity decimal.Decimal        `json:"quantity"`
	Reason   string                 `json:"reason" validate:"required,max=500"`
}

// Availability is the answer to an availability check.
type Availability struct {
	Key        inventory.BalanceKey `json:"-"`
	OnHand     decimal.Decimal      `json:"on_hand"`
	Reserved   decimal.Decimal      `json:"reserved"`
	Available  decimal.Decimal      `json:"available"`
	Requested  decimal.Decimal      `json:"requested"`
	Sufficient bool                 `json:"sufficient"`
}

// ExpiryAlert is one batch balance found by an expiry scan.
type ExpiryAlert struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	BatchNumber   string          `json:"batch_number"`
	ProductID     uuid.UUID       `json:"product_id"`
	LocationID    uuid.UUID       `json:"location_id"`
	ExpiryDate    time.Time       `json:"expiry_date"`
	DaysRemaining int             `json:"days_remaining"`
	OnHand        decimal.Decimal `json:"on_hand"`
}
