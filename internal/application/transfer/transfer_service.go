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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateTransfer records a draft transfer. No stock moves until it is sent.
func (s *Service) CreateTransfer(ctx context.Context, actor shared.Actor, req CreateTransferRequest) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "create")
	defer span.End()

	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var created *transfer.Transfer
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		t, err := transfer.NewTransfer(req.TenantID, req.FromLocationID, req.ToLocationID, actor.UserID, itemInputs(req.Items))
		if err != nil {
			return err
		}
		t.Notes = req.Notes
		if err := scope.Transfers().Save(ctx, t); err != nil {
			return fmt.Errorf("save transfer: %w", err)
		}
		scope.Record(t)
		created = t
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, "transfer_number", created.TransferNumber)
	return created, nil
}

// SendTransfer dispatches every item from the source location and records
// it in transit at the destination. Both sides commit together.
func (s *Service) SendTransfer(ctx context.Context, actor shared.Actor, tenantID, transferID uuid.UUID) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "send")
	defer span.End()

	if err := actor.Require(shared.CapTransferDispatch); err != nil {
		return nil, err
	}
	current, err := ledger.Read(ctx, s.coord, transferDoc(tenantID, transferID))
	if err != nil {
		return nil, err
	}
	keys := transferKeys(current, current.FromLocationID, current.ToLocationID)

	t, _, err := ledger.Update(ctx, s.coord, keys, transferDoc(tenantID, transferID), func(scope *ledger.Scope, t *transfer.Transfer) error {
		return s.send(ctx, scope, actor, t)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowTransfer, string(t.Status()))
	logger.FromContext(ctx).Info("Transfer sent",
		zap.String("transfer_number", t.TransferNumber),
		zap.String("from_location_id", t.FromLocationID.String()),
		zap.String("to_location_id", t.ToLocationID.String()),
		zap.Int("items", len(t.Items)),
	)
	return t, nil
}

// send appends the dispatch / in-transit pair of every item. The unit cost
// of the dispatched stock travels with the transfer.
func (s *Service) send(ctx context.Context, scope *ledger.Scope, actor shared.Actor, t *transfer.Transfer) error {
	ref := t.Reference()
	notes := "transfer " + t.TransferNumber
	return t.Send(actor.UserID, s.ledger.Now(), func(items []transfer.Item) (map[uuid.UUID]*decimal.Decimal, error) {
		costs := make(map[uuid.UUID]*decimal.Decimal, len(items))
		for _, it := range items {
			out, err := s.ledger.Append(ctx, scope, ledger.AppendRequest{
				Key:              inventory.NewBalanceKey(t.TenantID, t.FromLocationID, it.ProductID, it.BatchID),
				Kind:             inventory.KindDispatch,
				QuantityOut:      it.QuantityOrdered,
				Reference:        ref,
				ActorID:          actor.UserID,
				Notes:            notes,
				RequireAvailable: true,
			})
			if err != nil {
				return nil, err
			}
			costs[it.ID] = out.UnitCost
			if _, err := s.ledger.Append(ctx, scope, ledger.AppendRequest{
				Key:            inventory.NewBalanceKey(t.TenantID, t.ToLocationID, it.ProductID, it.BatchID),
				Kind:           inventory.KindTransfer,
				InTransitDelta: it.QuantityOrdered,
				UnitCost:       out.UnitCost,
				Reference:      ref,
				ActorID:        actor.UserID,
				Notes:          notes,
			}); err != nil {
				return nil, err
			}
		}
		return costs, nil
	})
}

// ReceiveTransfer books arrived quantities at the destination, moving them
// from in transit to on hand at the unit cost captured on send.
func (s *Service) ReceiveTransfer(ctx context.Context, actor shared.Actor, req ReceiveTransferRequest) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer", "receive")
	defer span.End()

	if err := actor.Require(shared.CapTransferReceive); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	current, err := ledger.Read(ctx, s.coord, transferDoc(req.TenantID, req.TransferID))
	if err != nil {
		return nil, err
	}
	keys := transferKeys(current, current.ToLocationID)

	t, _, err := ledger.Update(ctx, s.coord, keys, transferDoc(req.TenantID, req.TransferID), func(scope *ledger.Scope, t *transfer.Transfer) error {
		plan, err := t.PlanReceipt(req.Quantities)
		if err != nil {
			return err
		}
		return t.Receive(actor.UserID, s.ledger.Now(), plan, func(plan []transfer.Receipt) error {
			for _, r := range plan {
				if _, err := s.ledger.Append(ctx, scope, ledger.AppendRequest{
					Key:            inventory.NewBalanceKey(t.TenantID, t.ToLocationID, r.Item.ProductID, r.Item.BatchID),
					Kind:           inventory.KindReceive,
					QuantityIn:     r.Quantity,
					InTransitDelta: r.Quantity.Neg(),
					UnitCost:       r.Item.UnitCost,
					Reference:      t.Reference(),
					ActorID:        actor.UserID,
					Notes:          "transfer " + t.TransferNumber,
				}); err != nil {
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
	s.metrics.RecordTransition(ctx, req.TenantID, workflowTransfer, string(t.Status()))
	logger.FromContext(ctx).Info("Transfer received",
		zap.String("transfer_number", t.TransferNumber),
		zap.String("status", string(t.Status())),
	)
	return t, nil
}

// ResolveTransfer settles a disputed transfer.
func (s *Service) ResolveTransfer(ctx context.Context, actor shared.Actor, tenantID, transferID uuid.UUID) (*transfer.Transfer, error) {
	if err := actor.Require(shared.CapDisputeResolve); err != nil {
		return nil, err
	}
	t, _, err := ledger.Update(ctx, s.coord, nil, transferDoc(tenantID, transferID), func(_ *ledger.Scope, t *transfer.Transfer) error {
		return t.Resolve()
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowTransfer, string(t.Status()))
	return t, nil
}

// CloseTransfer closes a transfer from any state. Stock still in transit
// stays recorded at the destination.
func (s *Service) CloseTransfer(ctx context.Context, actor shared.Actor, tenantID, transferID uuid.UUID) (*transfer.Transfer, error) {
	t, _, err := ledger.Update(ctx, s.coord, nil, transferDoc(tenantID, transferID), func(_ *ledger.Scope, t *transfer.Transfer) error {
		return t.Close()
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowTransfer, string(t.Status()))
	logger.FromContext(ctx).Info("Transfer closed",
		zap.String("transfer_number", t.TransferNumber),
		zap.String("closed_by", actor.UserID.String()),
	)
	return t, nil
}

// GetTransfer returns one transfer.
func (s *Service) GetTransfer(ctx context.Context, tenantID, transferID uuid.UUID) (*transfer.Transfer, error) {
	return ledger.Read(ctx, s.coord, transferDoc(tenantID, transferID))
}

// TransfersForOrder lists the transfers a shop order was fulfilled with.
func (s *Service) TransfersForOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]*transfer.Transfer, error) {
	var out []*transfer.Transfer
	err := s.coord.Execute(ctx, func(tx ledger.Tx) error {
		ts, err := tx.Transfers().ListByShopOrder(ctx, tenantID, orderID)
		out = ts
		return err
	})
	return out, err
}

func transferKeys(t *transfer.Transfer, locations ...uuid.UUID) []inventory.BalanceKey {
	return itemKeys(t.TenantID, locations, func(add func(uuid.UUID, *uuid.UUID)) {
		for _, it := range t.Items {
			add(it.ProductID, it.BatchID)
		}
	})
}
