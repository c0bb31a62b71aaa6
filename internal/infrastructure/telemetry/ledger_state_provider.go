package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerStateProvider reads gauge inputs straight from stock_balances.
type GormLedgerStateProvider struct {
	db *gorm.DB
}

// NewGormLedgerStateProvider returns a provider over db.
func NewGormLedgerStateProvider(db *gorm.DB) *GormLedgerStateProvider {
	return &GormLedgerStateProvider{db: db}
}

// LowStockCount counts balances whose on-hand is below the
// low_stock_threshold of their location.
func (p *GormLedgerStateProvider) LowStockCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_balances AS b").
		Joins("JOIN location_settings AS l ON l.tenant_id = b.tenant_id AND l.location_id = b.location_id").
		Where("b.tenant_id = ?", tenantID).
		Where("l.low_stock_threshold IS NOT NULL AND b.on_hand < l.low_stock_threshold").
		Count(&count).Error
	return count, err
}

// InTransitByLocation sums in_transit per location, skipping zero totals.
func (p *GormLedgerStateProvider) InTransitByLocation(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]float64, error) {
	type row struct {
		LocationID uuid.UUID `gorm:"column:location_id"`
		InTransit  float64   `gorm:"column:in_transit"`
	}
	var rows []row
	err := p.db.WithContext(ctx).
		Table("stock_balances").
		Select("location_id, COALESCE(SUM(in_transit), 0) AS in_transit").
		Where("tenant_id = ?", tenantID).
		Group("location_id").
		Having("SUM(in_transit) <> 0").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]float64, len(rows))
	for _, r := range rows {
		out[r.LocationID] = r.InTransit
	}
	return out, nil
}

// GormTenantProvider lists tenants that hold any balance.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider returns a provider over db.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// ActiveTenantIDs returns the distinct tenants of stock_balances.
func (p *GormTenantProvider) ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("stock_balances").
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}
