package policy

import (
	"context"
	"errors"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CostLookup finds the unit cost of the stock a sale line draws from. A nil
// cost with a nil error means the lookup has no data.
type CostLookup interface {
	UnitCost(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error)
}

// CostLookupFunc adapts a function to CostLookup.
type CostLookupFunc func(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error)

func (f CostLookupFunc) UnitCost(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error) {
	return f(ctx, key)
}

// CostChain tries each lookup in order and returns the first cost found.
type CostChain []CostLookup

func (c CostChain) UnitCost(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error) {
	for _, l := range c {
		cost, err := l.UnitCost(ctx, key)
		if err != nil {
			return nil, err
		}
		if cost != nil && cost.IsPositive() {
			return cost, nil
		}
	}
	return nil, nil
}

// BalanceCost reads the weighted average cost of the balance.
func BalanceCost(balances inventory.BalanceRepository) CostLookup {
	return CostLookupFunc(func(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error) {
		b, err := balances.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return b.AverageCost, nil
	})
}

// BatchCost reads the production cost of the key's batch.
func BatchCost(batches inventory.BatchRepository) CostLookup {
	return CostLookupFunc(func(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error) {
		if !key.HasBatch() {
			return nil, nil
		}
		b, err := batches.FindByID(ctx, key.TenantID, key.BatchID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		c := b.UnitCost
		return &c, nil
	})
}

// ShopCost reads the per-shop cost override. The location of the key is the
// shop.
func ShopCost(src Source) CostLookup {
	return CostLookupFunc(func(ctx context.Context, key inventory.BalanceKey) (*decimal.Decimal, error) {
		return src.ShopCost(ctx, key.TenantID, key.LocationID, key.ProductID)
	})
}

// DefaultCostChain resolves cost from the balance average, then the batch,
// then the shop override.
func DefaultCostChain(balances inventory.BalanceRepository, batches inventory.BatchRepository, src Source) CostChain {
	return CostChain{BalanceCost(balances), BatchCost(batches), ShopCost(src)}
}
