package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/policy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantSettingsModel holds the tenant-wide policy defaults.
type TenantSettingsModel struct {
	TenantID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	NegativeStockBehavior   string           `gorm:"type:varchar(10);not null;default:'block'"`
	RequireMarginCheck      bool             `gorm:"not null;default:false"`
	MarginCheckBehavior     string           `gorm:"type:varchar(10);not null;default:'warn'"`
	RefundApprovalThreshold *decimal.Decimal `gorm:"type:decimal(18,4)"`
	ExpiryAlertDays         int              `gorm:"not null"`
	UpdatedAt               time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantSettingsModel) TableName() string {
	return "tenant_settings"
}

// TenantSettingsModelFromDomain converts domain tenant settings.
func TenantSettingsModelFromDomain(s policy.TenantSettings) *TenantSettingsModel {
	return &TenantSettingsModel{
		TenantID:                s.TenantID,
		NegativeStockBehavior:   string(s.NegativeStockBehavior),
		RequireMarginCheck:      s.RequireMarginCheck,
		MarginCheckBehavior:     string(s.MarginCheckBehavior),
		RefundApprovalThreshold: s.RefundApprovalThreshold,
		ExpiryAlertDays:         s.ExpiryAlertDays,
	}
}

// ToDomain converts the row to domain tenant settings.
func (m *TenantSettingsModel) ToDomain() policy.TenantSettings {
	return policy.TenantSettings{
		TenantID:                m.TenantID,
		NegativeStockBehavior:   policy.Behavior(m.NegativeStockBehavior),
		RequireMarginCheck:      m.RequireMarginCheck,
		MarginCheckBehavior:     policy.Behavior(m.MarginCheckBehavior),
		RefundApprovalThreshold: m.RefundApprovalThreshold,
		ExpiryAlertDays:         m.ExpiryAlertDays,
	}
}

// LocationSettingsModel holds per-location overrides.
type LocationSettingsModel struct {
	TenantID              uuid.UUID        `gorm:"type:uuid;primaryKey"`
	LocationID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	NegativeStockBehavior *string          `gorm:"type:varchar(10)"`
	LowStockThreshold     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	UpdatedAt             time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LocationSettingsModel) TableName() string {
	return "location_settings"
}

// LocationSettingsModelFromDomain converts domain location settings.
func LocationSettingsModelFromDomain(s policy.LocationSettings) *LocationSettingsModel {
	m := &LocationSettingsModel{
		TenantID:          s.TenantID,
		LocationID:        s.LocationID,
		LowStockThreshold: s.LowStockThreshold,
	}
	if s.NegativeStockBehavior != nil {
		b := string(*s.NegativeStockBehavior)
		m.NegativeStockBehavior = &b
	}
	return m
}

// ToDomain converts the row to domain location settings.
func (m *LocationSettingsModel) ToDomain() policy.LocationSettings {
	s := policy.LocationSettings{
		TenantID:          m.TenantID,
		LocationID:        m.LocationID,
		LowStockThreshold: m.LowStockThreshold,
	}
	if m.NegativeStockBehavior != nil {
		b := policy.Behavior(*m.NegativeStockBehavior)
		s.NegativeStockBehavior = &b
	}
	return s
}

// MarginRuleModel is one configured margin rule.
type MarginRuleModel struct {
	ID                   uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID             uuid.UUID        `gorm:"type:uuid;not null;index"`
	ShopID               *uuid.UUID       `gorm:"type:uuid;index"`
	ProductID            *uuid.UUID       `gorm:"type:uuid"`
	MinimumMarginPercent decimal.Decimal  `gorm:"type:decimal(8,4);not null"`
	WarningMarginPercent *decimal.Decimal `gorm:"type:decimal(8,4)"`
	Behavior             string           `gorm:"type:varchar(10);not null"`
	Active               bool             `gorm:"not null"`
	CreatedAt            time.Time        `gorm:"not null"`
	UpdatedAt            time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MarginRuleModel) TableName() string {
	return "margin_rules"
}

// MarginRuleModelFromDomain converts a domain margin rule.
func MarginRuleModelFromDomain(r policy.MarginRule) *MarginRuleModel {
	return &MarginRuleModel{
		ID:                   r.ID,
		TenantID:             r.TenantID,
		ShopID:               r.ShopID,
		ProductID:            r.ProductID,
		MinimumMarginPercent: r.MinimumMarginPercent,
		WarningMarginPercent: r.WarningMarginPercent,
		Behavior:             string(r.Behavior),
		Active:               r.Active,
	}
}

// ToDomain converts the row to a domain margin rule.
func (m *MarginRuleModel) ToDomain() policy.MarginRule {
	return policy.MarginRule{
		ID:                   m.ID,
		TenantID:             m.TenantID,
		ShopID:               m.ShopID,
		ProductID:            m.ProductID,
		MinimumMarginPercent: m.MinimumMarginPercent,
		WarningMarginPercent: m.WarningMarginPercent,
		Behavior:             policy.Behavior(m.Behavior),
		Active:               m.Active,
	}
}

// ShopCostModel is a per-shop unit cost override for a product.
type ShopCostModel struct {
	TenantID  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ShopID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShopCostModel) TableName() string {
	return "shop_costs"
}
