package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantSettings are the per-tenant policy defaults.
type TenantSettings struct {
	TenantID              uuid.UUID
	NegativeStockBehavior Behavior
	RequireMarginCheck    bool
	MarginCheckBehavior   Behavior
	// RefundApprovalThreshold: refunds at or below this amount are approved
	// on initiation. Nil means every refund needs explicit approval.
	RefundApprovalThreshold *decimal.Decimal
	ExpiryAlertDays         int
}

// DefaultTenantSettings applies when a tenant has no stored settings.
func DefaultTenantSettings(tenantID uuid.UUID) TenantSettings {
	return TenantSettings{
		TenantID:              tenantID,
		NegativeStockBehavior: Block,
		RequireMarginCheck:    true,
		MarginCheckBehavior:   Warn,
		ExpiryAlertDays:       30,
	}
}

// LocationSettings are per-location overrides.
type LocationSettings struct {
	TenantID   uuid.UUID
	LocationID uuid.UUID
	// NegativeStockBehavior overrides the tenant default when set.
	NegativeStockBehavior *Behavior
	// LowStockThreshold applies to every product at the location.
	LowStockThreshold *decimal.Decimal
}

// MarginRule is a minimum-margin rule. A nil ShopID applies tenant-wide; a
// nil ProductID applies to every product of the shop.
type MarginRule struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	ShopID               *uuid.UUID
	ProductID            *uuid.UUID
	MinimumMarginPercent decimal.Decimal
	WarningMarginPercent *decimal.Decimal
	Behavior             Behavior
	Active               bool
}

// Source supplies policy configuration. Implementations are read-only.
type Source interface {
	TenantSettings(ctx context.Context, tenantID uuid.UUID) (TenantSettings, error)
	LocationSettings(ctx context.Context, tenantID, locationID uuid.UUID) (LocationSettings, error)
	// MarginRules returns the active rules that could apply to a sale of
	// productID at shopID.
	MarginRules(ctx context.Context, tenantID, shopID, productID uuid.UUID) ([]MarginRule, error)
	// ShopCost returns the shop-specific cost override, or nil.
	ShopCost(ctx context.Context, tenantID, shopID, productID uuid.UUID) (*decimal.Decimal, error)
}
