package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultVerifyParallelism bounds concurrent key verifications.
const DefaultVerifyParallelism = 8

// Replay rebuilds the balance of key from its movements without touching
// the cache.
func (s *Service) Replay(ctx context.Context, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	var out *inventory.StockBalance
	err := s.coord.Execute(ctx, func(tx Tx) error {
		b, err := replay(ctx, tx, key)
		out = b
		return err
	})
	return out, err
}

// Verify compares the cached balance of key with its replay. It returns nil
// when they agree.
func (s *Service) Verify(ctx context.Context, key inventory.BalanceKey) (*inventory.Discrepancy, error) {
	var out *inventory.Discrepancy
	err := s.coord.Execute(ctx, func(tx Tx) error {
		cached, err := tx.Balances().Get(ctx, key)
		if err != nil {
			return fmt.Errorf("load balance %s: %w", key, err)
		}
		replayed, err := replay(ctx, tx, key)
		if err != nil {
			return err
		}
		out = inventory.Compare(cached, replayed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		s.metrics.RecordDiscrepancy(ctx, key.TenantID)
		logger.FromContext(ctx).Warn("Balance cache differs from ledger",
			zap.String("key", key.String()),
			zap.String("cached_on_hand", out.Cached.OnHand.String()),
			zap.String("replayed_on_hand", out.Replayed.OnHand.String()),
			zap.Int64("cached_sequence", out.CachedSequence),
			zap.Int64("replayed_sequence", out.ReplayedSequence),
		)
	}
	return out, nil
}

// VerifyTenant verifies every key of a tenant, parallelism keys at a time,
// and returns the discrepancies found.
func (s *Service) VerifyTenant(ctx context.Context, tenantID uuid.UUID, parallelism int) ([]*inventory.Discrepancy, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "verify_tenant")
	defer span.End()

	if parallelism <= 0 {
		parallelism = DefaultVerifyParallelism
	}
	var keys []inventory.BalanceKey
	err := s.coord.Execute(ctx, func(tx Tx) error {
		k, err := tx.Balances().ListKeys(ctx, tenantID)
		keys = k
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list keys: %w", err)
	}
	telemetry.SetAttributes(span, "tenant_id", tenantID.String(), "keys", len(keys))

	var (
		mu    sync.Mutex
		found []*inventory.Discrepancy
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, key := range keys {
		g.Go(func() error {
			d, err := s.Verify(gctx, key)
			if err != nil {
				return err
			}
			if d != nil {
				mu.Lock()
				found = append(found, d)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return found, nil
}

// Rebuild replaces the cached balance of key with its replay, under the
// key's lock.
func (s *Service) Rebuild(ctx context.Context, actor shared.Actor, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	if err := actor.Require(shared.CapStockAdjust); err != nil {
		return nil, err
	}
	var out *inventory.StockBalance
	_, err := s.coord.Run(ctx, []inventory.BalanceKey{key}, func(scope *Scope) error {
		if _, err := scope.Balances().GetForUpdate(ctx, key); err != nil {
			return fmt.Errorf("lock balance %s: %w", key, err)
		}
		b, err := replay(ctx, scope, key)
		if err != nil {
			return err
		}
		if err := scope.Balances().Save(ctx, b); err != nil {
			return fmt.Errorf("save balance %s: %w", key, err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Balance rebuilt from ledger",
		zap.String("key", key.String()),
		zap.Int64("sequence", out.LastSequence),
	)
	return out, nil
}

func replay(ctx context.Context, repos Repositories, key inventory.BalanceKey) (*inventory.StockBalance, error) {
	movements, err := repos.Movements().ListByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list movements %s: %w", key, err)
	}
	return inventory.Replay(key, movements)
}
