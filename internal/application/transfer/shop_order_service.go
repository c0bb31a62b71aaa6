package transfer

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateShopOrder records a draft order from a shop to its store.
func (s *Service) CreateShopOrder(ctx context.Context, actor shared.Actor, req CreateShopOrderRequest) (*transfer.ShopOrder, error) {
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	var created *transfer.ShopOrder
	_, err := s.coord.Run(ctx, nil, func(scope *ledger.Scope) error {
		o, err := transfer.NewShopOrder(req.TenantID, req.ShopID, req.StoreID, actor.UserID, itemInputs(req.Items))
		if err != nil {
			return err
		}
		o.Notes = req.Notes
		if err := scope.ShopOrders().Save(ctx, o); err != nil {
			return fmt.Errorf("save shop order: %w", err)
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitShopOrder sends a draft order to the store.
func (s *Service) SubmitShopOrder(ctx context.Context, actor shared.Actor, tenantID, orderID uuid.UUID) (*transfer.ShopOrder, error) {
	return s.changeOrder(ctx, tenantID, orderID, func(o *transfer.ShopOrder) error {
		return o.Submit()
	})
}

// ApproveShopOrder accepts a submitted order for fulfillment.
func (s *Service) ApproveShopOrder(ctx context.Context, actor shared.Actor, tenantID, orderID uuid.UUID) (*transfer.ShopOrder, error) {
	if err := actor.Require(shared.CapShopOrderApprove); err != nil {
		return nil, err
	}
	return s.changeOrder(ctx, tenantID, orderID, func(o *transfer.ShopOrder) error {
		return o.Approve(actor.UserID)
	})
}

// CancelShopOrder cancels an order from any state. Transfers already sent
// for it are not touched.
func (s *Service) CancelShopOrder(ctx context.Context, actor shared.Actor, tenantID, orderID uuid.UUID) (*transfer.ShopOrder, error) {
	return s.changeOrder(ctx, tenantID, orderID, func(o *transfer.ShopOrder) error {
		return o.Cancel()
	})
}

// CloseShopOrder closes an order from any state.
func (s *Service) CloseShopOrder(ctx context.Context, actor shared.Actor, tenantID, orderID uuid.UUID) (*transfer.ShopOrder, error) {
	return s.changeOrder(ctx, tenantID, orderID, func(o *transfer.ShopOrder) error {
		return o.Close()
	})
}

func (s *Service) changeOrder(ctx context.Context, tenantID, orderID uuid.UUID, change func(*transfer.ShopOrder) error) (*transfer.ShopOrder, error) {
	o, _, err := ledger.Update(ctx, s.coord, nil, shopOrderDoc(tenantID, orderID), func(_ *ledger.Scope, o *transfer.ShopOrder) error {
		return change(o)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, tenantID, workflowShopOrder, string(o.Status()))
	return o, nil
}

// FulfillShopOrder builds a transfer from the store to the shop for the
// shipped quantities and sends it in the same unit of work. The order
// becomes fulfilled once every item has shipped, otherwise
// partially_fulfilled; the transfer follows its own lifecycle from there.
func (s *Service) FulfillShopOrder(ctx context.Context, actor shared.Actor, req FulfillShopOrderRequest) (*FulfillmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop_order", "fulfill")
	defer span.End()

	if err := actor.Require(shared.CapShopOrderFulfill); err != nil {
		return nil, err
	}
	if err := ledger.Validate(req); err != nil {
		return nil, err
	}
	current, err := ledger.Read(ctx, s.coord, shopOrderDoc(req.TenantID, req.OrderID))
	if err != nil {
		return nil, err
	}
	keys := itemKeys(current.TenantID, []uuid.UUID{current.StoreID, current.ShopID}, func(add func(uuid.UUID, *uuid.UUID)) {
		for _, it := range current.Items {
			add(it.ProductID, it.BatchID)
		}
	})

	var shipped *transfer.Transfer
	o, _, err := ledger.Update(ctx, s.coord, keys, shopOrderDoc(req.TenantID, req.OrderID), func(scope *ledger.Scope, o *transfer.ShopOrder) error {
		lines, err := o.PlanFulfillment(req.Quantities)
		if err != nil {
			return err
		}
		return o.Fulfill(s.ledger.Now(), lines, func(lines []transfer.FulfillmentLine) (uuid.UUID, error) {
			items := make([]transfer.ItemInput, len(lines))
			for i, l := range lines {
				items[i] = transfer.ItemInput{ProductID: l.ProductID, BatchID: l.BatchID, Quantity: l.Quantity}
			}
			t, err := transfer.NewTransfer(o.TenantID, o.StoreID, o.ShopID, actor.UserID, items)
			if err != nil {
				return uuid.Nil, err
			}
			t.ShopOrderID = &o.ID
			t.Notes = "shop order " + o.OrderNumber
			if err := s.send(ctx, scope, actor, t); err != nil {
				return uuid.Nil, err
			}
			if err := scope.Transfers().Save(ctx, t); err != nil {
				return uuid.Nil, fmt.Errorf("save transfer: %w", err)
			}
			scope.Record(t)
			shipped = t
			return t.ID, nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordTransition(ctx, req.TenantID, workflowShopOrder, string(o.Status()))
	s.metrics.RecordTransition(ctx, req.TenantID, workflowTransfer, string(shipped.Status()))
	logger.FromContext(ctx).Info("Shop order fulfilled",
		zap.String("order_number", o.OrderNumber),
		zap.String("transfer_number", shipped.TransferNumber),
		zap.String("status", string(o.Status())),
	)
	return &FulfillmentResult{Order: o, Transfer: shipped}, nil
}

// GetShopOrder returns one shop order.
func (s *Service) GetShopOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*transfer.ShopOrder, error) {
	return ledger.Read(ctx, s.coord, shopOrderDoc(tenantID, orderID))
}
