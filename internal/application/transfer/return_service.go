package transfer

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateReturnRequest records a shop's request to send stock back.
func (s *Service) CreateReturnRequest(ctx context.Context, actor shared.Actor, req CreateReturnRequest) (*transfer.ReturnRequest, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	items := make([]transfer.ReturnItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = transfer.ReturnItemInput{
			ProductID: it.ProductID,
			BatchID:   it.BatchID,
			Quantity:  it.Quantity,
			Reason:    it.Reason,
			Condition: it.Condition,
		}
	}
	var created *transfer.ReturnRequest
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		r, err := transfer.NewReturnRequest(req.TenantID, req.ShopID, req.StoreID, actor.UserID, items)
		if err != nil {
			return err
		}
		r.Notes = req.Notes
		if err := scope.ReturnRequests().Save(ctx, r); err != nil {
			return fmt.Errorf("save return request: %w", err)
		}
		scope.Record(r)
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApproveReturnRequest approves quantities and moves them: out of the shop,
// and into the store on hand for good goods or into the damaged bucket for
// damaged and expired goods. The shop side follows the negative-stock
// policy of the shop.
func (s *Service) ApproveReturnRequest(ctx context.Context, actor shared.Actor, req ApproveReturnRequest) (*ReturnResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "return_request", "approve")
	defer span.End()

	if err := actor.Require(shared.CapReturnApprove); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	current, err := ledger.Read(ctx, s.coord, returnDoc(req.TenantID, req.ReturnID))
	if err != nil {
		return nil, err
	}
	keys := itemKeys(current.TenantID, []uuid.UUID{current.ShopID, current.StoreID}, func(add func(uuid.UUID, *uuid.UUID)) {
		for _, it := range current.Items {
			add(it.ProductID, it.BatchID)
		}
	})

	r, advisories, err := ledger.Update(ctx, s.coord, keys, returnDoc(req.TenantID, req.ReturnID), func(scope *ledger.Scope, r *transfer.ReturnRequest) error {
		lines, err := r.PlanApproval(req.Quantities)
		if err != nil {
			return err
		}
		return r.Approve(actor.UserID, s.ledger.Now(), lines, func(lines []transfer.ReturnLine) error {
			for _, l := range lines {
				if err := s.moveReturn(ctx, scope, actor, r, l); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowReturn, string(r.Status()))
	logger.FromContext(ctx).Info("Return request approved",
		zap.String("return_number", r.ReturnNumber),
		zap.String("status", string(r.Status())),
		zap.Int("advisories", len(advisories)),
	)
	return &ReturnResult{Return: r, Advisories: advisories}, nil
}

func (s *Service) moveReturn(ctx context.Context, scope *ledger.Scope, actor shared.Actor, r *transfer.ReturnRequest, l transfer.ReturnLine) error {
	ref := r.Reference()
	notes := fmt.Sprintf("return %s: %s", r.ReturnNumber, l.Item.Reason)
	out, err := s.ledger.Append(ctx, scope, ledger.AppendRequest{
		Key:                      inventory.NewBalanceKey(r.TenantID, r.ShopID, l.Item.ProductID, l.Item.BatchID),
		Kind:                     inventory.KindReturn,
		QuantityOut:              l.Quantity,
		Reference:                ref,
		ActorID:                  actor.UserID,
		Notes:                    notes,
		ApplyNegativeStockPolicy: true,
	})
	if err != nil {
		return err
	}

	in := ledger.AppendRequest{
		Key:       inventory.NewBalanceKey(r.TenantID, r.StoreID, l.Item.ProductID, l.Item.BatchID),
		UnitCost:  out.UnitCost,
		Reference: ref,
		ActorID:   actor.UserID,
		Notes:     notes,
	}
	switch l.Item.Condition {
	case transfer.ConditionDamaged:
		in.Kind = inventory.KindDamage
		in.DamagedDelta = l.Quantity
	case transfer.ConditionExpired:
		in.Kind = inventory.KindExpiry
		in.DamagedDelta = l.Quantity
	default:
		in.Kind = inventory.KindReturn
		in.QuantityIn = l.Quantity
	}
	_, err = s.ledger.Append(ctx, scope, in)
	return err
}

// CloseReturnRequest closes a return from any state.
func (s *Service) CloseReturnRequest(ctx context.Context, actor shared.Actor, tenantID, returnID uuid.UUID) (*transfer.ReturnRequest, error) {
	r, _, err := ledger.Update(ctx, s.coord, nil, returnDoc(tenantID, returnID), func(_ *ledger.Scope, r *transfer.ReturnRequest) error {
		return r.Close()
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowReturn, string(r.Status()))
	return r, nil
}

// GetReturnRequest returns one return request.
func (s *Service) GetReturnRequest(ctx context.Context, tenantID, returnID uuid.UUID) (*transfer.ReturnRequest, error) {
	return ledger.Read(ctx, s.coord, returnDoc(tenantID, returnID))
}
