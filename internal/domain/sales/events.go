package sales

import (
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants for events
const (
	AggregateTypeSale          = "Sale"
	AggregateTypeRefund        = "Refund"
	AggregateTypeCreditAccount = "CreditAccount"
)

// Event type constants
const (
	EventTypeSaleCompleted       = "SaleCompleted"
	EventTypeSaleVoided          = "SaleVoided"
	EventTypeRefundCompleted     = "RefundCompleted"
	EventTypeMarginViolated      = "MarginViolated"
	EventTypeCreditLimitExceeded = "CreditLimitExceeded"
)

// SaleCompletedEvent is raised when a sale has been recorded.
type SaleCompletedEvent struct {
	shared.BaseDomainEvent
	SaleNumber string          `json:"sale_number"`
	ShopID     uuid.UUID       `json:"shop_id"`
	Total      decimal.Decimal `json:"total"`
	ItemCount  int             `json:"item_count"`
}

// NewSaleCompletedEvent creates the sale completed event
func NewSaleCompletedEvent(s *Sale) *SaleCompletedEvent {
	return &SaleCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleCompleted, AggregateTypeSale, s.ID, s.TenantID),
		SaleNumber:      s.SaleNumber,
		ShopID:          s.ShopID,
		Total:           s.Total,
		ItemCount:       len(s.Items),
	}
}

// SaleVoidedEvent is raised when a sale is voided.
type SaleVoidedEvent struct {
	shared.BaseDomainEvent
	SaleNumber string    `json:"sale_number"`
	ShopID     uuid.UUID `json:"shop_id"`
	Reason     string    `json:"reason"`
}

// NewSaleVoidedEvent creates the sale voided event
func NewSaleVoidedEvent(s *Sale) *SaleVoidedEvent {
	return &SaleVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleVoided, AggregateTypeSale, s.ID, s.TenantID),
		SaleNumber:      s.SaleNumber,
		ShopID:          s.ShopID,
		Reason:          s.VoidReason,
	}
}

// RefundCompletedEvent is raised when a refund is paid out.
type RefundCompletedEvent struct {
	shared.BaseDomainEvent
	RefundNumber string          `json:"refund_number"`
	SaleID       uuid.UUID       `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// NewRefundCompletedEvent creates the refund completed event
func NewRefundCompletedEvent(r *Refund) *RefundCompletedEvent {
	return &RefundCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRefundCompleted, AggregateTypeRefund, r.ID, r.TenantID),
		RefundNumber:    r.RefundNumber,
		SaleID:          r.SaleID,
		Amount:          r.Amount,
	}
}

// MarginViolatedEvent is raised for a sale line priced below its margin rule
// when the rule only warns.
type MarginViolatedEvent struct {
	shared.BaseDomainEvent
	ShopID    uuid.UUID         `json:"shop_id"`
	ProductID uuid.UUID         `json:"product_id"`
	Details   map[string]string `json:"details"`
}

// NewMarginViolatedEvent creates the margin violated event
func NewMarginViolatedEvent(s *Sale, productID uuid.UUID, details map[string]string) *MarginViolatedEvent {
	return &MarginViolatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMarginViolated, AggregateTypeSale, s.ID, s.TenantID),
		ShopID:          s.ShopID,
		ProductID:       productID,
		Details:         details,
	}
}

// CreditLimitExceededEvent is raised when a charge takes an account over
// its limit.
type CreditLimitExceededEvent struct {
	shared.BaseDomainEvent
	CustomerID  uuid.UUID       `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// NewCreditLimitExceededEvent creates the credit limit exceeded event
func NewCreditLimitExceededEvent(a *CreditAccount, amount decimal.Decimal) *CreditLimitExceededEvent {
	return &CreditLimitExceededEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCreditLimitExceeded, AggregateTypeCreditAccount, a.ID, a.TenantID),
		CustomerID:      a.CustomerID,
		Amount:          amount,
		Balance:         a.Balance.Add(amount),
		CreditLimit:     a.CreditLimit,
	}
}
