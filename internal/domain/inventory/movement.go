package inventory

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind classifies a stock movement.
type MovementKind string

const (
	KindProduction MovementKind = "production"
	KindReceive    MovementKind = "receive"
	KindDispatch   MovementKind = "dispatch"
	KindSale       MovementKind = "sale"
	KindReturn     MovementKind = "return"
	KindAdjustment MovementKind = "adjustment"
	KindDamage     MovementKind = "damage"
	KindExpiry     MovementKind = "expiry"
	KindTransfer   MovementKind = "transfer"
)

// IsValid reports whether k is a known kind.
func (k MovementKind) IsValid() bool {
	switch k {
	case KindProduction, KindReceive, KindDispatch, KindSale, KindReturn,
		KindAdjustment, KindDamage, KindExpiry, KindTransfer:
		return true
	}
	return false
}

// Quantities are the four buckets tracked per balance key.
type Quantities struct {
	OnHand    decimal.Decimal `json:"on_hand"`
	Reserved  decimal.Decimal `json:"reserved"`
	InTransit decimal.Decimal `json:"in_transit"`
	Damaged   decimal.Decimal `json:"damaged"`
}

// Equal compares all four buckets numerically.
func (q Quantities) Equal(o Quantities) bool {
	return q.OnHand.Equal(o.OnHand) &&
		q.Reserved.Equal(o.Reserved) &&
		q.InTransit.Equal(o.InTransit) &&
		q.Damaged.Equal(o.Damaged)
}

// MovementDraft is a requested ledger entry, before it is applied to a
// balance. Sub-quantities are expressed as signed deltas; the resulting
// snapshot is computed under the balance lock.
type MovementDraft struct {
	Key            BalanceKey
	Kind           MovementKind
	QuantityIn     decimal.Decimal
	QuantityOut    decimal.Decimal
	ReservedDelta  decimal.Decimal
	InTransitDelta decimal.Decimal
	DamagedDelta   decimal.Decimal
	// UnitCost is the cost of inbound units. Nil means unknown; the movement
	// then records the balance's average cost and costing is skipped.
	UnitCost  *decimal.Decimal
	Reference shared.Reference
	ActorID   uuid.UUID
	Notes     string
	// AllowNegative permits on-hand to drop below zero. Set only when the
	// negative-stock policy did not block.
	AllowNegative bool
}

// StockMovement is one immutable, attributable ledger entry.
type StockMovement struct {
	ID             uuid.UUID
	Key            BalanceKey
	Sequence       int64
	Kind           MovementKind
	Reference      shared.Reference
	QuantityIn     decimal.Decimal
	QuantityOut    decimal.Decimal
	ReservedDelta  decimal.Decimal
	InTransitDelta decimal.Decimal
	DamagedDelta   decimal.Decimal
	UnitCost       *decimal.Decimal
	Snapshot       Quantities
	CreatedBy      uuid.UUID
	Notes          string
	CreatedAt      time.Time
}

// IsOutbound reports whether the movement removed on-hand stock.
func (m *StockMovement) IsOutbound() bool {
	return m.QuantityOut.IsPositive()
}

// draft reconstructs the request a movement was created from, for replay.
func (m *StockMovement) draft() MovementDraft {
	return MovementDraft{
		Key:            m.Key,
		Kind:           m.Kind,
		QuantityIn:     m.QuantityIn,
		QuantityOut:    m.QuantityOut,
		ReservedDelta:  m.ReservedDelta,
		InTransitDelta: m.InTransitDelta,
		DamagedDelta:   m.DamagedDelta,
		UnitCost:       m.UnitCost,
		Reference:      m.Reference,
		ActorID:        m.CreatedBy,
		Notes:          m.Notes,
		AllowNegative:  true,
	}
}
