package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KeyColumns store an inventory.BalanceKey as the balance primary key. A
// batchless key stores the nil uuid.
type KeyColumns struct {
	TenantID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	LocationID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	BatchID    uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func newKeyColumns(k inventory.BalanceKey) KeyColumns {
	return KeyColumns{TenantID: k.TenantID, LocationID: k.LocationID, ProductID: k.ProductID, BatchID: k.BatchID}
}

// Key rebuilds the balance key.
func (c KeyColumns) Key() inventory.BalanceKey {
	return inventory.BalanceKey{TenantID: c.TenantID, LocationID: c.LocationID, ProductID: c.ProductID, BatchID: c.BatchID}
}

// StockMovementModel is one append-only ledger row.
type StockMovementModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_sequence,priority:1"`
	LocationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_sequence,priority:2"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_sequence,priority:3"`
	BatchID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_sequence,priority:4"`
	Sequence   int64     `gorm:"not null;uniqueIndex:idx_movement_sequence,priority:5"`
	Kind       string    `gorm:"type:varchar(20);not null"`
	ReferenceColumns
	QuantityIn     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityOut    decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedDelta  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	InTransitDelta decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	DamagedDelta   decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCost       *decimal.Decimal `gorm:"type:decimal(18,4)"`
	OnHandAfter    decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ReservedAfter  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	InTransitAfter decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	DamagedAfter   decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	CreatedBy      uuid.UUID        `gorm:"type:uuid"`
	Notes          string           `gorm:"type:text"`
	CreatedAt      time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// StockMovementModelFromDomain converts a domain movement.
func StockMovementModelFromDomain(m *inventory.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:               m.ID,
		TenantID:         m.Key.TenantID,
		LocationID:       m.Key.LocationID,
		ProductID:        m.Key.ProductID,
		BatchID:          m.Key.BatchID,
		Sequence:         m.Sequence,
		Kind:             string(m.Kind),
		ReferenceColumns: NewReferenceColumns(m.Reference),
		QuantityIn:       m.QuantityIn,
		QuantityOut:      m.QuantityOut,
		ReservedDelta:    m.ReservedDelta,
		InTransitDelta:   m.InTransitDelta,
		DamagedDelta:     m.DamagedDelta,
		UnitCost:         m.UnitCost,
		OnHandAfter:      m.Snapshot.OnHand,
		ReservedAfter:    m.Snapshot.Reserved,
		InTransitAfter:   m.Snapshot.InTransit,
		DamagedAfter:     m.Snapshot.Damaged,
		CreatedBy:        m.CreatedBy,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
	}
}

// ToDomain converts the row to a domain movement.
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:             m.ID,
		Key:            inventory.BalanceKey{TenantID: m.TenantID, LocationID: m.LocationID, ProductID: m.ProductID, BatchID: m.BatchID},
		Sequence:       m.Sequence,
		Kind:           inventory.MovementKind(m.Kind),
		Reference:      m.ReferenceColumns.Reference(),
		QuantityIn:     m.QuantityIn,
		QuantityOut:    m.QuantityOut,
		ReservedDelta:  m.ReservedDelta,
		InTransitDelta: m.InTransitDelta,
		DamagedDelta:   m.DamagedDelta,
		UnitCost:       m.UnitCost,
		Snapshot: inventory.Quantities{
			OnHand:    m.OnHandAfter,
			Reserved:  m.ReservedAfter,
			InTransit: m.InTransitAfter,
			Damaged:   m.DamagedAfter,
		},
		CreatedBy: m.CreatedBy,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

// StockBalanceModel is the balance cache row of one key.
type StockBalanceModel struct {
	KeyColumns
	OnHand         decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Reserved       decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	InTransit      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	Damaged        decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	AverageCost    *decimal.Decimal `gorm:"type:decimal(18,4)"`
	LastSequence   int64            `gorm:"not null;default:0"`
	LastMovementAt *time.Time
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockBalanceModel) TableName() string {
	return "stock_balances"
}

// StockBalanceModelFromDomain converts a domain balance.
func StockBalanceModelFromDomain(b *inventory.StockBalance) *StockBalanceModel {
	return &StockBalanceModel{
		KeyColumns:     newKeyColumns(b.Key),
		OnHand:         b.OnHand,
		Reserved:       b.Reserved,
		InTransit:      b.InTransit,
		Damaged:        b.Damaged,
		AverageCost:    b.AverageCost,
		LastSequence:   b.LastSequence,
		LastMovementAt: b.LastMovementAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// ToDomain converts the row to a domain balance.
func (m *StockBalanceModel) ToDomain() *inventory.StockBalance {
	return &inventory.StockBalance{
		Key: m.KeyColumns.Key(),
		Quantities: inventory.Quantities{
			OnHand:    m.OnHand,
			Reserved:  m.Reserved,
			InTransit: m.InTransit,
			Damaged:   m.Damaged,
		},
		AverageCost:    m.AverageCost,
		LastSequence:   m.LastSequence,
		LastMovementAt: m.LastMovementAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// BatchModel is a production batch.
type BatchModel struct {
	BaseModel
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_batch_number,priority:1"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	LocationID     uuid.UUID       `gorm:"type:uuid;not null"`
	BatchNumber    string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_batch_number,priority:2"`
	ProductionDate time.Time       `gorm:"not null"`
	ExpiryDate     *time.Time      `gorm:"index"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BulkPrice      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedBy      uuid.UUID       `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// BatchModelFromDomain converts a domain batch.
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{
		TenantID:       b.TenantID,
		ProductID:      b.ProductID,
		LocationID:     b.LocationID,
		BatchNumber:    b.BatchNumber,
		ProductionDate: b.ProductionDate,
		ExpiryDate:     b.ExpiryDate,
		Quantity:       b.Quantity,
		BulkPrice:      b.BulkPrice,
		UnitCost:       b.UnitCost,
		CreatedBy:      b.CreatedBy,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// ToDomain converts the row to a domain batch.
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		BaseEntity:     m.BaseModel.ToDomain(),
		TenantID:       m.TenantID,
		ProductID:      m.ProductID,
		LocationID:     m.LocationID,
		BatchNumber:    m.BatchNumber,
		ProductionDate: m.ProductionDate,
		ExpiryDate:     m.ExpiryDate,
		Quantity:       m.Quantity,
		BulkPrice:      m.BulkPrice,
		UnitCost:       m.UnitCost,
		CreatedBy:      m.CreatedBy,
	}
}
