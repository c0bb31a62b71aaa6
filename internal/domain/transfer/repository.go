// Package transfer holds the documents that move stock between locations:
// transfers, shop orders, return requests, and the disputes raised on them.
package transfer

import (
	"context"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// TransferRepository persists transfers with their items.
type TransferRepository interface {
	Save(ctx context.Context, t *Transfer) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Transfer, error)
	ListByShopOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]*Transfer, error)
}

// ShopOrderRepository persists shop orders with their items.
type ShopOrderRepository interface {
	Save(ctx context.Context, o *ShopOrder) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ShopOrder, error)
}

// ReturnRequestRepository persists return requests with their items.
type ReturnRequestRepository interface {
	Save(ctx context.Context, r *ReturnRequest) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ReturnRequest, error)
}

// DisputeRepository persists disputes with their messages.
type DisputeRepository interface {
	Save(ctx context.Context, d *Dispute) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Dispute, error)
	ListByReference(ctx context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*Dispute, error)
}
