package memory

import (
	"context"
	"slices"
	"time"

	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/google/uuid"
)

// find loads one row of a tenant.
func find[T document](tx *Tx, o *overlay[T], tenantID, id uuid.UUID, tenantOf func(T) uuid.UUID, resource string) (T, error) {
	tx.store.mu.RLock()
	v, ok := o.get(id)
	tx.store.mu.RUnlock()
	if !ok || tenantOf(v) != tenantID {
		var zero T
		return zero, shared.NotFound(resource, id)
	}
	return v, nil
}

func list[T document](tx *Tx, o *overlay[T], keep func(T) bool) []T {
	tx.store.mu.RLock()
	rows := o.all()
	tx.store.mu.RUnlock()
	return filter(rows, keep)
}

type transferRepo struct{ tx *Tx }

func (r transferRepo) Save(_ context.Context, t *transfer.Transfer) error {
	r.tx.transfers.put(t)
	return nil
}

func (r transferRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*transfer.Transfer, error) {
	return find(r.tx, r.tx.transfers, tenantID, id, func(t *transfer.Transfer) uuid.UUID { return t.TenantID }, "transfer")
}

func (r transferRepo) ListByShopOrder(_ context.Context, tenantID, orderID uuid.UUID) ([]*transfer.Transfer, error) {
	out := list(r.tx, r.tx.transfers, func(t *transfer.Transfer) bool {
		return t.TenantID == tenantID && t.ShopOrderID != nil && *t.ShopOrderID == orderID
	})
	slices.SortFunc(out, func(a, b *transfer.Transfer) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

type shopOrderRepo struct{ tx *Tx }

func (r shopOrderRepo) Save(_ context.Context, o *transfer.ShopOrder) error {
	r.tx.shopOrders.put(o)
	return nil
}

func (r shopOrderRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*transfer.ShopOrder, error) {
	return find(r.tx, r.tx.shopOrders, tenantID, id, func(o *transfer.ShopOrder) uuid.UUID { return o.TenantID }, "shop order")
}

type returnRequestRepo struct{ tx *Tx }

func (r returnRequestRepo) Save(_ context.Context, rr *transfer.ReturnRequest) error {
	r.tx.returnRequests.put(rr)
	return nil
}

func (r returnRequestRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*transfer.ReturnRequest, error) {
	return find(r.tx, r.tx.returnRequests, tenantID, id, func(rr *transfer.ReturnRequest) uuid.UUID { return rr.TenantID }, "return request")
}

type disputeRepo struct{ tx *Tx }

func (r disputeRepo) Save(_ context.Context, d *transfer.Dispute) error {
	r.tx.disputes.put(d)
	return nil
}

func (r disputeRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*transfer.Dispute, error) {
	return find(r.tx, r.tx.disputes, tenantID, id, func(d *transfer.Dispute) uuid.UUID { return d.TenantID }, "dispute")
}

func (r disputeRepo) ListByReference(_ context.Context, tenantID uuid.UUID, ref shared.Reference) ([]*transfer.Dispute, error) {
	out := list(r.tx, r.tx.disputes, func(d *transfer.Dispute) bool {
		return d.TenantID == tenantID && d.Reference == ref
	})
	slices.SortFunc(out, func(a, b *transfer.Dispute) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

type saleRepo struct{ tx *Tx }

func (r saleRepo) Save(_ context.Context, s *sales.Sale) error {
	r.tx.sales.put(s)
	return nil
}

func (r saleRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*sales.Sale, error) {
	return find(r.tx, r.tx.sales, tenantID, id, func(s *sales.Sale) uuid.UUID { return s.TenantID }, "sale")
}

func (r saleRepo) ListByShopBetween(_ context.Context, tenantID, shopID uuid.UUID, from, to time.Time) ([]*sales.Sale, error) {
	out := list(r.tx, r.tx.sales, func(s *sales.Sale) bool {
		return s.TenantID == tenantID && s.ShopID == shopID &&
			!s.CreatedAt.Before(from) && s.CreatedAt.Before(to)
	})
	slices.SortFunc(out, func(a, b *sales.Sale) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

type refundRepo struct{ tx *Tx }

func (r refundRepo) Save(_ context.Context, rf *sales.Refund) error {
	r.tx.refunds.put(rf)
	return nil
}

func (r refundRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*sales.Refund, error) {
	return find(r.tx, r.tx.refunds, tenantID, id, func(rf *sales.Refund) uuid.UUID { return rf.TenantID }, "refund")
}

func (r refundRepo) ListBySale(_ context.Context, tenantID, saleID uuid.UUID) ([]*sales.Refund, error) {
	out := list(r.tx, r.tx.refunds, func(rf *sales.Refund) bool {
		return rf.TenantID == tenantID && rf.SaleID == saleID
	})
	slices.SortFunc(out, func(a, b *sales.Refund) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (r refundRepo) ListCompletedByShopBetween(_ context.Context, tenantID, shopID uuid.UUID, from, to time.Time) ([]*sales.Refund, error) {
	out := list(r.tx, r.tx.refunds, func(rf *sales.Refund) bool {
		return rf.TenantID == tenantID && rf.ShopID == shopID &&
			rf.Status() == sales.RefundCompleted && rf.CompletedAt != nil &&
			!rf.CompletedAt.Before(from) && rf.CompletedAt.Before(to)
	})
	slices.SortFunc(out, func(a, b *sales.Refund) int { return a.CompletedAt.Compare(*b.CompletedAt) })
	return out, nil
}

type creditAccountRepo struct{ tx *Tx }

func (r creditAccountRepo) Save(_ context.Context, a *sales.CreditAccount) error {
	if pending := a.PendingTransactions(); len(pending) > 0 {
		for _, t := range pending {
			t.AccountID = a.ID
			r.tx.creditTx[a.ID] = append(r.tx.creditTx[a.ID], t)
		}
		a.ClearPendingTransactions()
	}
	r.tx.creditAccounts.put(a)
	return nil
}

func (r creditAccountRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*sales.CreditAccount, error) {
	return find(r.tx, r.tx.creditAccounts, tenantID, id, func(a *sales.CreditAccount) uuid.UUID { return a.TenantID }, "credit account")
}

func (r creditAccountRepo) FindByCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*sales.CreditAccount, error) {
	out := list(r.tx, r.tx.creditAccounts, func(a *sales.CreditAccount) bool {
		return a.TenantID == tenantID && a.CustomerID == customerID
	})
	if len(out) == 0 {
		return nil, shared.NotFound("credit account for customer", customerID)
	}
	return r.FindByID(ctx, tenantID, out[0].ID)
}

func (r creditAccountRepo) ListTransactions(_ context.Context, tenantID, accountID uuid.UUID) ([]sales.CreditTransaction, error) {
	r.tx.store.mu.RLock()
	out := slices.Clone(r.tx.store.creditTx[accountID])
	r.tx.store.mu.RUnlock()
	out = append(out, r.tx.creditTx[accountID]...)
	return filter(out, func(t sales.CreditTransaction) bool { return t.TenantID == tenantID }), nil
}

type cashUpRepo struct{ tx *Tx }

func (r cashUpRepo) Save(_ context.Context, c *cash.CashUpReport) error {
	r.tx.cashUps.put(c)
	return nil
}

func (r cashUpRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*cash.CashUpReport, error) {
	return find(r.tx, r.tx.cashUps, tenantID, id, func(c *cash.CashUpReport) uuid.UUID { return c.TenantID }, "cash-up report")
}

type remittanceRepo struct{ tx *Tx }

func (r remittanceRepo) Save(_ context.Context, rm *cash.Remittance) error {
	r.tx.remittances.put(rm)
	return nil
}

func (r remittanceRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*cash.Remittance, error) {
	return find(r.tx, r.tx.remittances, tenantID, id, func(rm *cash.Remittance) uuid.UUID { return rm.TenantID }, "remittance")
}
