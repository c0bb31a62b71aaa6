// Package transfer runs the workflows that move stock between locations:
// transfers, shop orders, return requests, and the disputes raised on them.
// Every ledger write goes through the ledger service inside one coordinated
// unit of work, so a document only changes state together with its
// movements.
package transfer

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// Workflow names used in transition metrics.
const (
	workflowTransfer  = "transfer"
	workflowShopOrder = "shop_order"
	workflowReturn    = "return_request"
	workflowDispute   = "dispute"
)

// Service handles transfer, shop order, return and dispute operations.
type Service struct {
	ledger  *ledger.Service
	coord   *ledger.Coordinator
	metrics *telemetry.LedgerMetrics
}

// NewService creates a Service writing through ledgerSvc.
func NewService(ledgerSvc *ledger.Service) *Service {
	return &Service{
		ledger: ledgerSvc,
		coord:  ledgerSvc.Coordinator(),
	}
}

// SetMetrics enables workflow transition metrics.
func (s *Service) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

func transferDoc(tenantID, id uuid.UUID) ledger.Document[*transfer.Transfer] {
	return ledger.Document[*transfer.Transfer]{
		Load: func(ctx context.Context, tx ledger.Tx) (*transfer.Transfer, error) {
			return tx.Transfers().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, t *transfer.Transfer) error {
			if err := tx.Transfers().Save(ctx, t); err != nil {
				return fmt.Errorf("save transfer: %w", err)
			}
			return nil
		},
	}
}

func shopOrderDoc(tenantID, id uuid.UUID) ledger.Document[*transfer.ShopOrder] {
	return ledger.Document[*transfer.ShopOrder]{
		Load: func(ctx context.Context, tx ledger.Tx) (*transfer.ShopOrder, error) {
			return tx.ShopOrders().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, o *transfer.ShopOrder) error {
			if err := tx.ShopOrders().Save(ctx, o); err != nil {
				return fmt.Errorf("save shop order: %w", err)
			}
			return nil
		},
	}
}

func returnDoc(tenantID, id uuid.UUID) ledger.Document[*transfer.ReturnRequest] {
	return ledger.Document[*transfer.ReturnRequest]{
		Load: func(ctx context.Context, tx ledger.Tx) (*transfer.ReturnRequest, error) {
			return tx.ReturnRequests().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, r *transfer.ReturnRequest) error {
			if err := tx.ReturnRequests().Save(ctx, r); err != nil {
				return fmt.Errorf("save return request: %w", err)
			}
			return nil
		},
	}
}

func disputeDoc(tenantID, id uuid.UUID) ledger.Document[*transfer.Dispute] {
	return ledger.Document[*transfer.Dispute]{
		Load: func(ctx context.Context, tx ledger.Tx) (*transfer.Dispute, error) {
			return tx.Disputes().FindByID(ctx, tenantID, id)
		},
		Save: func(ctx context.Context, tx ledger.Tx, d *transfer.Dispute) error {
			if err := tx.Disputes().Save(ctx, d); err != nil {
				return fmt.Errorf("save dispute: %w", err)
			}
			return nil
		},
	}
}

// itemKeys returns the balance keys of products at the given locations.
func itemKeys(tenantID uuid.UUID, locations []uuid.UUID, products func(add func(productID uuid.UUID, batchID *uuid.UUID))) []inventory.BalanceKey {
	var keys []inventory.BalanceKey
	products(func(productID uuid.UUID, batchID *uuid.UUID) {
		for _, loc := range locations {
			keys = append(keys, inventory.NewBalanceKey(tenantID, loc, productID, batchID))
		}
	})
	return inventory.SortKeys(keys)
}
