package memory

import (
	"context"
	"sync"

	"github.com/erp/retailops/internal/domain/policy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type locationKey struct {
	tenantID   uuid.UUID
	locationID uuid.UUID
}

type shopCostKey struct {
	tenantID  uuid.UUID
	shopID    uuid.UUID
	productID uuid.UUID
}

// PolicySource is a mutable, in-process policy.Source.
type PolicySource struct {
	mu        sync.RWMutex
	tenants   map[uuid.UUID]policy.TenantSettings
	locations map[locationKey]policy.LocationSettings
	rules     []policy.MarginRule
	shopCosts map[shopCostKey]decimal.Decimal
}

// NewPolicySource creates a source where every tenant has default settings.
func NewPolicySource() *PolicySource {
	return &PolicySource{
		tenants:   make(map[uuid.UUID]policy.TenantSettings),
		locations: make(map[locationKey]policy.LocationSettings),
		shopCosts: make(map[shopCostKey]decimal.Decimal),
	}
}

// SetTenantSettings stores settings for s.TenantID.
func (p *PolicySource) SetTenantSettings(s policy.TenantSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants[s.TenantID] = s
}

// SetLocationSettings stores overrides for s.LocationID.
func (p *PolicySource) SetLocationSettings(s policy.LocationSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locations[locationKey{s.TenantID, s.LocationID}] = s
}

// AddMarginRule appends a rule.
func (p *PolicySource) AddMarginRule(r policy.MarginRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	p.rules = append(p.rules, r)
}

// SetShopCost stores a shop-specific cost override.
func (p *PolicySource) SetShopCost(tenantID, shopID, productID uuid.UUID, cost decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shopCosts[shopCostKey{tenantID, shopID, productID}] = cost
}

func (p *PolicySource) TenantSettings(_ context.Context, tenantID uuid.UUID) (policy.TenantSettings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.tenants[tenantID]; ok {
		return s, nil
	}
	return policy.DefaultTenantSettings(tenantID), nil
}

func (p *PolicySource) LocationSettings(_ context.Context, tenantID, locationID uuid.UUID) (policy.LocationSettings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.locations[locationKey{tenantID, locationID}]; ok {
		return s, nil
	}
	return policy.LocationSettings{TenantID: tenantID, LocationID: locationID}, nil
}

func (p *PolicySource) MarginRules(_ context.Context, tenantID, shopID, productID uuid.UUID) ([]policy.MarginRule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []policy.MarginRule
	for _, r := range p.rules {
		if !r.Active || r.TenantID != tenantID {
			continue
		}
		if r.ShopID != nil && *r.ShopID != shopID {
			continue
		}
		if r.ProductID != nil && *r.ProductID != productID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *PolicySource) ShopCost(_ context.Context, tenantID, shopID, productID uuid.UUID) (*decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if c, ok := p.shopCosts[shopCostKey{tenantID, shopID, productID}]; ok {
		return &c, nil
	}
	return nil, nil
}

var _ policy.Source = (*PolicySource)(nil)
