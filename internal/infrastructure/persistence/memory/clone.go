package memory

import (
	"slices"

	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/transfer"
)

// Stored aggregates are copied on every read and write so that a caller
// mutating its copy never changes committed state.

func cloneTransfer(t *transfer.Transfer) *transfer.Transfer {
	c := *t
	c.Items = slices.Clone(t.Items)
	c.ClearDomainEvents()
	return &c
}

func cloneShopOrder(o *transfer.ShopOrder) *transfer.ShopOrder {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.TransferIDs = slices.Clone(o.TransferIDs)
	c.ClearDomainEvents()
	return &c
}

func cloneReturnRequest(r *transfer.ReturnRequest) *transfer.ReturnRequest {
	c := *r
	c.Items = slices.Clone(r.Items)
	c.ClearDomainEvents()
	return &c
}

func cloneDispute(d *transfer.Dispute) *transfer.Dispute {
	c := *d
	c.Messages = slices.Clone(d.Messages)
	c.ClearDomainEvents()
	return &c
}

func cloneSale(s *sales.Sale) *sales.Sale {
	c := *s
	c.Items = slices.Clone(s.Items)
	c.Payments = slices.Clone(s.Payments)
	c.ClearDomainEvents()
	return &c
}

func cloneRefund(r *sales.Refund) *sales.Refund {
	c := *r
	c.Items = slices.Clone(r.Items)
	c.ClearDomainEvents()
	return &c
}

func cloneCreditAccount(a *sales.CreditAccount) *sales.CreditAccount {
	c := *a
	c.ClearPendingTransactions()
	c.ClearDomainEvents()
	return &c
}

func cloneCashUp(r *cash.CashUpReport) *cash.CashUpReport {
	c := *r
	c.ClearDomainEvents()
	return &c
}

func cloneRemittance(r *cash.Remittance) *cash.Remittance {
	c := *r
	c.ClearDomainEvents()
	return &c
}

func cloneBalance(b *inventory.StockBalance) *inventory.StockBalance {
	c := *b
	return &c
}

func cloneBatch(b *inventory.Batch) *inventory.Batch {
	c := *b
	return &c
}
