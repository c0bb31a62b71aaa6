package ledger

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScanExpiring raises an ExpiryAlert for every balance of a batch that
// expires within days and still has stock on hand. When days is not
// positive the tenant's expiry alert window is used.
func (s *Service) ScanExpiring(ctx context.Context, tenantID uuid.UUID, days int) ([]ExpiryAlert, error) {
	if days <= 0 {
		settings := policy.DefaultTenantSettings(tenantID)
		if s.policies != nil {
			loaded, err := s.policies.TenantSettings(ctx, tenantID)
			if err != nil {
				return nil, fmt.Errorf("load tenant settings: %w", err)
			}
			settings = loaded
		}
		days = settings.ExpiryAlertDays
	}

	now := s.now()
	cutoff := now.AddDate(0, 0, days)
	var alerts []ExpiryAlert
	err := s.coord.Execute(ctx, func(tx Tx) error {
		batches, err := tx.Batches().ListExpiringBefore(ctx, tenantID, cutoff)
		if err != nil {
			return fmt.Errorf("list expiring batches: %w", err)
		}
		for _, b := range batches {
			if b.ExpiryDate == nil {
				continue
			}
			balances, err := tx.Balances().ListByBatch(ctx, tenantID, b.ID)
			if err != nil {
				return fmt.Errorf("list balances of batch %s: %w", b.ID, err)
			}
			for _, bal := range balances {
				if !bal.OnHand.IsPositive() {
					continue
				}
				tx.Emit(inventory.NewExpiryAlertEvent(b, bal.Key.LocationID, bal.OnHand, now))
				alerts = append(alerts, ExpiryAlert{
					BatchID:       b.ID,
					BatchNumber:   b.BatchNumber,
					ProductID:     b.ProductID,
					LocationID:    bal.Key.LocationID,
					ExpiryDate:    *b.ExpiryDate,
					DaysRemaining: b.DaysUntilExpiry(now),
					OnHand:        bal.OnHand,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Expiry scan finished",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("days", days),
		zap.Int("alerts", len(alerts)),
	)
	return alerts, nil
}
