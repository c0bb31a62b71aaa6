package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PolicyRepository is the database-backed policy.Source. Reads go outside
// the ledger unit of work; settings change rarely and are read per call.
type PolicyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository creates a PolicyRepository.
func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// TenantSettings returns the stored settings, or the defaults when the
// tenant has none.
func (r *PolicyRepository) TenantSettings(ctx context.Context, tenantID uuid.UUID) (policy.TenantSettings, error) {
	var m models.TenantSettingsModel
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return policy.DefaultTenantSettings(tenantID), nil
	}
	if err != nil {
		return policy.TenantSettings{}, err
	}
	return m.ToDomain(), nil
}

// LocationSettings implements policy.Source
func (r *PolicyRepository) LocationSettings(ctx context.Context, tenantID, locationID uuid.UUID) (policy.LocationSettings, error) {
	var m models.LocationSettingsModel
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND location_id = ?", tenantID, locationID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return policy.LocationSettings{TenantID: tenantID, LocationID: locationID}, nil
	}
	if err != nil {
		return policy.LocationSettings{}, err
	}
	return m.ToDomain(), nil
}

// MarginRules returns the active rules that can apply to a sale of product
// at shop: tenant-wide, shop-wide and product-specific ones.
func (r *PolicyRepository) MarginRules(ctx context.Context, tenantID, shopID, productID uuid.UUID) ([]policy.MarginRule, error) {
	var rows []models.MarginRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Where("shop_id IS NULL OR shop_id = ?", shopID).
		Where("product_id IS NULL OR product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]policy.MarginRule, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// ShopCost implements policy.Source
func (r *PolicyRepository) ShopCost(ctx context.Context, tenantID, shopID, productID uuid.UUID) (*decimal.Decimal, error) {
	var m models.ShopCostModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND shop_id = ? AND product_id = ?", tenantID, shopID, productID).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m.UnitCost, nil
}

// SetTenantSettings inserts or replaces the settings of s.TenantID.
func (r *PolicyRepository) SetTenantSettings(ctx context.Context, s policy.TenantSettings) error {
	m := models.TenantSettingsModelFromDomain(s)
	m.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

// SetLocationSettings inserts or replaces the overrides of one location.
func (r *PolicyRepository) SetLocationSettings(ctx context.Context, s policy.LocationSettings) error {
	m := models.LocationSettingsModelFromDomain(s)
	m.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

// SaveMarginRule inserts or replaces a rule, assigning an id to new ones.
func (r *PolicyRepository) SaveMarginRule(ctx context.Context, rule policy.MarginRule) (policy.MarginRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	m := models.MarginRuleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return policy.MarginRule{}, err
	}
	return rule, nil
}

// SetShopCost stores a shop-specific cost override.
func (r *PolicyRepository) SetShopCost(ctx context.Context, tenantID, shopID, productID uuid.UUID, cost decimal.Decimal) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&models.ShopCostModel{
		TenantID:  tenantID,
		ShopID:    shopID,
		ProductID: productID,
		UnitCost:  cost,
		UpdatedAt: time.Now(),
	}).Error
}

// Ensure PolicyRepository implements policy.Source
var _ policy.Source = (*PolicyRepository)(nil)
