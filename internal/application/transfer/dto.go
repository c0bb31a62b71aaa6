package transfer

import (
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemRequest is one product line of a transfer or shop order.
type ItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	BatchID   *uuid.UUID      `json:"batch_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CreateTransferRequest describes a transfer between two locations.
type CreateTransferRequest struct {
	TenantID       uuid.UUID     `json:"tenant_id" validate:"required"`
	FromLocationID uuid.UUID     `json:"from_location_id" validate:"required"`
	ToLocationID   uuid.UUID     `json:"to_location_id" validate:"required"`
	Items          []ItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes          string        `json:"notes" validate:"max=1000"`
}

// ReceiveTransferRequest accepts quantities per transfer item. Items left
// out are received in full.
type ReceiveTransferRequest struct {
	TenantID   uuid.UUID                     `json:"tenant_id" validate:"required"`
	TransferID uuid.UUID                     `json:"transfer_id" validate:"required"`
	Quantities map[uuid.UUID]decimal.Decimal `json:"quantities"`
}

// CreateShopOrderRequest describes a shop's request for stock.
type CreateShopOrderRequest struct {
	TenantID uuid.UUID     `json:"tenant_id" validate:"required"`
	ShopID   uuid.UUID     `json:"shop_id" validate:"required"`
	StoreID  uuid.UUID     `json:"store_id" validate:"required"`
	Items    []ItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes    string        `json:"notes" validate:"max=1000"`
}

// FulfillShopOrderRequest ships quantities per order item. Items left out
// ship their outstanding quantity.
type FulfillShopOrderRequest struct {
	TenantID   uuid.UUID                     `json:"tenant_id" validate:"required"`
	OrderID    uuid.UUID                     `json:"order_id" validate:"required"`
	Quantities map[uuid.UUID]decimal.Decimal `json:"quantities"`
}

// FulfillmentResult is a fulfilled order and the transfer sent for it.
type FulfillmentResult struct {
	Order    *transfer.ShopOrder
	Transfer *transfer.Transfer
}

// ReturnItemRequest is one returned product.
type ReturnItemRequest struct {
	ProductID uuid.UUID          `json:"product_id" validate:"required"`
	BatchID   *uuid.UUID         `json:"batch_id"`
	Quantity  decimal.Decimal    `json:"quantity"`
	Reason    string             `json:"reason" validate:"max=500"`
	Condition transfer.Condition `json:"condition" validate:"omitempty,oneof=good damaged expired"`
}

// CreateReturnRequest describes stock a shop sends back to its store.
type CreateReturnRequest struct {
	TenantID uuid.UUID           `json:"tenant_id" validate:"required"`
	ShopID   uuid.UUID           `json:"shop_id" validate:"required"`
	StoreID  uuid.UUID           `json:"store_id" validate:"required"`
	Items    []ReturnItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes    string              `json:"notes" validate:"max=1000"`
}

// ApproveReturnRequest approves quantities per return item. Items left out
// are approved in full.
type ApproveReturnRequest struct {
	TenantID   uuid.UUID                     `json:"tenant_id" validate:"required"`
	ReturnID   uuid.UUID                     `json:"return_id" validate:"required"`
	Quantities map[uuid.UUID]decimal.Decimal `json:"quantities"`
}

// ReturnResult is an approved return with the warnings raised moving it.
type ReturnResult struct {
	Return     *transfer.ReturnRequest
	Advisories policy.Advisories
}

// OpenDisputeRequest raises a dispute on a document.
type OpenDisputeRequest struct {
	TenantID  uuid.UUID        `json:"tenant_id" validate:"required"`
	Reference shared.Reference `json:"reference"`
	Subject   string           `json:"subject" validate:"required,max=200"`
	Message   string           `json:"message" validate:"max=5000"`
}

// ResolveDisputeRequest settles a dispute.
type ResolveDisputeRequest struct {
	TenantID   uuid.UUID `json:"tenant_id" validate:"required"`
	DisputeID  uuid.UUID `json:"dispute_id" validate:"required"`
	Resolution string    `json:"resolution" validate:"required,max=5000"`
}

func itemInputs(items []ItemRequest) []transfer.ItemInput {
	out := make([]transfer.ItemInput, len(items))
	for i, it := range items {
		out[i] = transfer.ItemInput{ProductID: it.ProductID, BatchID: it.BatchID, Quantity: it.Quantity}
	}
	return out
}
