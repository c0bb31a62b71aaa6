package persistence

import (
	"context"
	"testing"

	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPolicyRepository(t *testing.T) *PolicyRepository {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, db.AutoMigrate(
		&models.TenantSettingsModel{},
		&models.LocationSettingsModel{},
		&models.MarginRuleModel{},
		&models.ShopCostModel{},
	))
	return NewPolicyRepository(db)
}

func TestPolicyRepository_TenantSettings(t *testing.T) {
	repo := newPolicyRepository(t)
	ctx := context.Background()
	tenant := uuid.New()

	got, err := repo.TenantSettings(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultTenantSettings(tenant), got, "defaults without a stored row")

	threshold := testutil.Dec("25")
	want := policy.DefaultTenantSettings(tenant)
	want.NegativeStockBehavior = policy.Warn
	want.RefundApprovalThreshold = &threshold
	require.NoError(t, repo.SetTenantSettings(ctx, want))

	want.ExpiryAlertDays = 14
	require.NoError(t, repo.SetTenantSettings(ctx, want), "second write replaces the row")

	got, err = repo.TenantSettings(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, policy.Warn, got.NegativeStockBehavior)
	assert.Equal(t, 14, got.ExpiryAlertDays)
	require.NotNil(t, got.RefundApprovalThreshold)
	assert.True(t, got.RefundApprovalThreshold.Equal(threshold))
}

func TestPolicyRepository_LocationSettings(t *testing.T) {
	repo := newPolicyRepository(t)
	ctx := context.Background()
	tenant, location := uuid.New(), uuid.New()

	got, err := repo.LocationSettings(ctx, tenant, location)
	require.NoError(t, err)
	assert.Nil(t, got.NegativeStockBehavior)
	assert.Nil(t, got.LowStockThreshold)

	block := policy.Block
	low := testutil.Dec("10")
	require.NoError(t, repo.SetLocationSettings(ctx, policy.LocationSettings{
		TenantID:              tenant,
		LocationID:            location,
		NegativeStockBehavior: &block,
		LowStockThreshold:     &low,
	}))

	got, err = repo.LocationSettings(ctx, tenant, location)
	require.NoError(t, err)
	require.NotNil(t, got.NegativeStockBehavior)
	assert.Equal(t, policy.Block, *got.NegativeStockBehavior)
	require.NotNil(t, got.LowStockThreshold)
	assert.True(t, got.LowStockThreshold.Equal(low))
}

func TestPolicyRepository_MarginRules(t *testing.T) {
	repo := newPolicyRepository(t)
	ctx := context.Background()
	tenant, shop, otherShop, product := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	save := func(rule policy.MarginRule) policy.MarginRule {
		rule.TenantID = tenant
		rule.Behavior = policy.Warn
		rule.MinimumMarginPercent = testutil.Dec("10")
		saved, err := repo.SaveMarginRule(ctx, rule)
		require.NoError(t, err)
		return saved
	}
	tenantWide := save(policy.MarginRule{Active: true})
	shopWide := save(policy.MarginRule{ShopID: &shop, Active: true})
	productRule := save(policy.MarginRule{ShopID: &shop, ProductID: &product, Active: true})
	save(policy.MarginRule{ShopID: &otherShop, Active: true})
	save(policy.MarginRule{ShopID: &shop, Active: false})

	rules, err := repo.MarginRules(ctx, tenant, shop, product)
	require.NoError(t, err)

	ids := make([]uuid.UUID, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	assert.ElementsMatch(t, []uuid.UUID{tenantWide.ID, shopWide.ID, productRule.ID}, ids)
}

func TestPolicyRepository_ShopCost(t *testing.T) {
	repo := newPolicyRepository(t)
	ctx := context.Background()
	tenant, shop, product := uuid.New(), uuid.New(), uuid.New()

	cost, err := repo.ShopCost(ctx, tenant, shop, product)
	require.NoError(t, err)
	assert.Nil(t, cost)

	require.NoError(t, repo.SetShopCost(ctx, tenant, shop, product, testutil.Dec("3.75")))
	require.NoError(t, repo.SetShopCost(ctx, tenant, shop, product, testutil.Dec("4.10")))

	cost, err = repo.ShopCost(ctx, tenant, shop, product)
	require.NoError(t, err)
	require.NotNil(t, cost)
	assert.True(t, cost.Equal(testutil.Dec("4.10")))
}
