package sales

import (
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItemRequest is one line of a sale.
type SaleItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	BatchID   *uuid.UUID      `json:"batch_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// PaymentRequest is one tender of a sale.
type PaymentRequest struct {
	Method          sales.PaymentMethod `json:"method" validate:"required,oneof=cash card mobile credit_account"`
	Amount          decimal.Decimal     `json:"amount"`
	ReferenceNumber string              `json:"reference_number" validate:"max=100"`
}

// ProcessSaleRequest records a point-of-sale transaction.
type ProcessSaleRequest struct {
	TenantID   uuid.UUID         `json:"tenant_id" validate:"required"`
	ShopID     uuid.UUID         `json:"shop_id" validate:"required"`
	CustomerID *uuid.UUID        `json:"customer_id"`
	Items      []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Payments   []PaymentRequest  `json:"payments" validate:"required,min=1,dive"`
	Discount   decimal.Decimal   `json:"discount"`
	Tax        decimal.Decimal   `json:"tax"`
	Notes      string            `json:"notes" validate:"max=1000"`
}

// SaleResult is a processed sale and the warnings raised on the way.
type SaleResult struct {
	Sale       *sales.Sale       `json:"sale"`
	Advisories policy.Advisories `json:"advisories,omitempty"`
}

// VoidSaleRequest cancels a sale.
type VoidSaleRequest struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	SaleID   uuid.UUID `json:"sale_id" validate:"required"`
	Reason   string    `json:"reason" validate:"required,max=500"`
}

// RefundItemRequest is one refunded sale line.
type RefundItemRequest struct {
	SaleItemID     uuid.UUID            `json:"sale_item_id" validate:"required"`
	Quantity       decimal.Decimal      `json:"quantity"`
	Amount         *decimal.Decimal     `json:"amount"`
	Classification sales.Classification `json:"classification" validate:"omitempty,oneof=good damaged expired"`
	Notes          string               `json:"notes" validate:"max=500"`
}

// InitiateRefundRequest opens a refund against a sale.
type InitiateRefundRequest struct {
	TenantID uuid.UUID           `json:"tenant_id" validate:"required"`
	SaleID   uuid.UUID           `json:"sale_id" validate:"required"`
	Reason   string              `json:"reason" validate:"required,max=500"`
	Items    []RefundItemRequest `json:"items" validate:"required,min=1,dive"`
}

// OpenCreditAccountRequest opens a customer credit account.
type OpenCreditAccountRequest struct {
	TenantID         uuid.UUID       `json:"tenant_id" validate:"required"`
	CustomerID       uuid.UUID       `json:"customer_id" validate:"required"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	PaymentTermsDays int             `json:"payment_terms_days" validate:"gte=0,lte=365"`
}

// CreditPaymentRequest records money received on account.
type CreditPaymentRequest struct {
	TenantID  uuid.UUID       `json:"tenant_id" validate:"required"`
	AccountID uuid.UUID       `json:"account_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes" validate:"max=500"`
}
