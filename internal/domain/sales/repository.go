// Package sales models point-of-sale transactions, their refunds and the
// customer credit accounts sales can be charged to.
package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SaleRepository persists sales with their items and payments.
type SaleRepository interface {
	Save(ctx context.Context, s *Sale) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)
	// ListByShopBetween returns the shop's sales created in [from, to).
	ListByShopBetween(ctx context.Context, tenantID, shopID uuid.UUID, from, to time.Time) ([]*Sale, error)
}

// RefundRepository persists refunds with their items.
type RefundRepository interface {
	Save(ctx context.Context, r *Refund) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Refund, error)
	ListBySale(ctx context.Context, tenantID, saleID uuid.UUID) ([]*Refund, error)
	// ListCompletedByShopBetween returns the shop's refunds completed in
	// [from, to).
	ListCompletedByShopBetween(ctx context.Context, tenantID, shopID uuid.UUID, from, to time.Time) ([]*Refund, error)
}

// CreditAccountRepository persists credit accounts. Save also appends the
// account's pending transactions.
type CreditAccountRepository interface {
	Save(ctx context.Context, a *CreditAccount) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*CreditAccount, error)
	FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*CreditAccount, error)
	ListTransactions(ctx context.Context, tenantID, accountID uuid.UUID) ([]CreditTransaction, error)
}
