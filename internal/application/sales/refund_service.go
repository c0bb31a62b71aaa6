package sales

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InitiateRefund opens a refund. Quantities held by other open refunds of
// the same sale count against what is refundable. A refund at or below the
// tenant's approval threshold is approved on the spot.
func (s *Service) InitiateRefund(ctx context.Context, actor shared.Actor, req InitiateRefundRequest) (*sales.Refund, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	items := make([]sales.RefundItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = sales.RefundItemInput{
			SaleItemID:     it.SaleItemID,
			Quantity:       it.Quantity,
			Amount:         it.Amount,
			Classification: it.Classification,
			Notes:          it.Notes,
		}
	}

	var created *sales.Refund
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		sl, err := scope.Sales().FindByID(ctx, req.TenantID, req.SaleID)
		if err != nil {
			return err
		}
		r, err := sales.NewRefund(sl, actor.UserID, req.Reason, items)
		if err != nil {
			return err
		}
		if err := s.checkOpenRefunds(ctx, scope, sl, r); err != nil {
			return err
		}
		settings, err := s.tenantSettings(ctx, req.TenantID)
		if err != nil {
			return err
		}
		if t := settings.RefundApprovalThreshold; t != nil && r.Amount.LessThanOrEqual(*t) {
			if err := r.Approve(actor.UserID); err != nil {
				return err
			}
		}
		if err := scope.Refunds().Save(ctx, r); err != nil {
			return fmt.Errorf("save refund: %w", err)
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowRefund, string(created.Status()))
	logger.FromContext(ctx).Info("Refund initiated",
		zap.String("refund_number", created.RefundNumber),
		zap.String("amount", created.Amount.StringFixed(2)),
		zap.String("status", string(created.Status())),
	)
	return created, nil
}

func (s *Service) checkOpenRefunds(ctx context.Context, scope *ledger.Scope, sl *sales.Sale, r *sales.Refund) error {
	open, err := scope.Refunds().ListBySale(ctx, sl.TenantID, sl.ID)
	if err != nil {
		return fmt.Errorf("list refunds: %w", err)
	}
	held := make(map[uuid.UUID]decimal.Decimal)
	for _, o := range open {
		if o.Status() != sales.RefundInitiated && o.Status() != sales.RefundApproved {
			continue
		}
		for _, it := range o.Items {
			held[it.SaleItemID] = held[it.SaleItemID].Add(it.Quantity)
		}
	}
	for _, it := range r.Items {
		held[it.SaleItemID] = held[it.SaleItemID].Add(it.Quantity)
		line := sl.Item(it.SaleItemID)
		if held[it.SaleItemID].GreaterThan(line.Refundable()) {
			return shared.InvalidInput("refund quantity %s exceeds refundable %s for item %s once open refunds are counted",
				held[it.SaleItemID], line.Refundable(), line.ID)
		}
	}
	return nil
}

// ApproveRefund accepts an initiated refund.
func (s *Service) ApproveRefund(ctx context.Context, actor shared.Actor, tenantID, refundID uuid.UUID) (*sales.Refund, error) {
	if err := actor.Require(shared.CapRefundApprove); err != nil {
		return nil, err
	}
	return s.changeRefund(ctx, tenantID, refundID, func(r *sales.Refund) error {
		return r.Approve(actor.UserID)
	})
}

// RejectRefund declines an initiated refund.
func (s *Service) RejectRefund(ctx context.Context, actor shared.Actor, tenantID, refundID uuid.UUID) (*sales.Refund, error) {
	if err := actor.Require(shared.CapRefundApprove); err != nil {
		return nil, err
	}
	return s.changeRefund(ctx, tenantID, refundID, func(r *sales.Refund) error {
		return r.Reject()
	})
}

func (s *Service) changeRefund(ctx context.Context, tenantID, refundID uuid.UUID, change func(*sales.Refund) error) (*sales.Refund, error) {
	r, _, err := ledger.Update(ctx, s.coord, nil, refundDoc(tenantID, refundID), func(_ *ledger.Scope, r *sales.Refund) error {
		return change(r)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowRefund, string(r.Status()))
	return r, nil
}

// CompleteRefund pays out an approved refund. Good goods go back on hand at
// the cost captured on the sale; damaged and expired goods go to the damaged
// bucket. The sale becomes refunded or partially_refunded.
func (s *Service) CompleteRefund(ctx context.Context, actor shared.Actor, tenantID, refundID uuid.UUID) (*sales.Refund, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "complete")
	defer span.End()

	current, err := ledger.Read(ctx, s.coord, refundDoc(tenantID, refundID))
	if err != nil {
		return nil, err
	}
	keys := make([]inventory.BalanceKey, 0, len(current.Items))
	for _, it := range current.Items {
		keys = append(keys, inventory.NewBalanceKey(current.TenantID, current.ShopID, it.ProductID, it.BatchID))
	}

	var sale *sales.Sale
	r, _, err := ledger.Update(ctx, s.coord, inventory.SortKeys(keys), refundDoc(tenantID, refundID), func(scope *ledger.Scope, r *sales.Refund) error {
		if err := r.CanComplete(); err != nil {
			return err
		}
		sl, err := scope.Sales().FindByID(ctx, r.TenantID, r.SaleID)
		if err != nil {
			return err
		}
		return r.Complete(actor.UserID, s.ledger.Now(), func() error {
			if err := sl.ApplyRefund(r.Items, func() error {
				return s.restock(ctx, scope, actor, sl, r)
			}); err != nil {
				return err
			}
			if err := scope.Sales().Save(ctx, sl); err != nil {
				return fmt.Errorf("save sale: %w", err)
			}
			scope.Record(sl)
			sale = sl
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowRefund, string(r.Status()))
	s.metrics.RecordTransition(ctx, tenantID, workflowSale, string(sale.Status()))
	logger.FromContext(ctx).Info("Refund completed",
		zap.String("refund_number", r.RefundNumber),
		zap.String("sale_number", sale.SaleNumber),
		zap.String("sale_status", string(sale.Status())),
	)
	return r, nil
}

func (s *Service) restock(ctx context.Context, scope *ledger.Scope, actor shared.Actor, sl *sales.Sale, r *sales.Refund) error {
	for _, it := range r.Items {
		entry := ledger.AppendRequest{
			Key:       inventory.NewBalanceKey(r.TenantID, r.ShopID, it.ProductID, it.BatchID),
			Reference: r.Reference(),
			ActorID:   actor.UserID,
			Notes:     fmt.Sprintf("refund %s of %s", r.RefundNumber, sl.SaleNumber),
		}
		if line := sl.Item(it.SaleItemID); line != nil {
			entry.UnitCost = line.UnitCost
		}
		switch it.Classification {
		case sales.ClassDamaged:
			entry.Kind = inventory.KindDamage
			entry.DamagedDelta = it.Quantity
		case sales.ClassExpired:
			entry.Kind = inventory.KindExpiry
			entry.DamagedDelta = it.Quantity
		default:
			entry.Kind = inventory.KindReturn
			entry.QuantityIn = it.Quantity
		}
		if _, err := s.ledger.Append(ctx, scope, entry); err != nil {
			return err
		}
	}
	return nil
}

// GetRefund returns one refund.
func (s *Service) GetRefund(ctx context.Context, tenantID, refundID uuid.UUID) (*sales.Refund, error) {
	return ledger.Read(ctx, s.coord, refundDoc(tenantID, refundID))
}

// RefundsForSale lists the refunds of a sale, oldest first.
func (s *Service) RefundsForSale(ctx context.Context, tenantID, saleID uuid.UUID) ([]*sales.Refund, error) {
	var out []*sales.Refund
	err := s.coord.Execute(ctx, func(tx ledger.Tx) error {
		rs, err := tx.Refunds().ListBySale(ctx, tenantID, saleID)
		out = rs
		return err
	})
	return out, err
}

func refundDoc(tenantID, id uuid.UUID) ledger.Document[*sales.Refund] {
	return ledger.Document[*sales.Refund]{
		Load: func(ctx context.Context, tx ledger.Tx) (*sales.Refund, error) {
			return tx.Refunds().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, r *sales.Refund) error {
			if err := tx.Refunds().Save(ctx, r); err != nil {
				return fmt.Errorf("save refund: %w", err)
			}
			return nil
		},
	}
}
