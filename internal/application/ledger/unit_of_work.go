// Package ledger coordinates every write to the inventory ledger: it takes
// the balance-key locks an operation needs, runs the operation inside one
// unit of work and appends movements through a single guarded path.
package ledger

import (
	"context"

	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
)

// Repositories provides every repository bound to one unit of work.
type Repositories interface {
	Movements() inventory.MovementRepository
	Balances() inventory.BalanceRepository
	Batches() inventory.BatchRepository
	Transfers() transfer.TransferRepository
	ShopOrders() transfer.ShopOrderRepository
	ReturnRequests() transfer.ReturnRequestRepository
	Disputes() transfer.DisputeRepository
	Sales() sales.SaleRepository
	Refunds() sales.RefundRepository
	CreditAccounts() sales.CreditAccountRepository
	CashUps() cash.CashUpRepository
	Remittances() cash.RemittanceRepository
}

// Tx is an open unit of work.
type Tx interface {
	Repositories
	// Emit queues events for delivery once the unit of work commits.
	Emit(events ...shared.DomainEvent)
}

// UnitOfWork runs fn atomically. If fn returns an error every write made
// through tx is discarded and no queued event is delivered.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(tx Tx) error) error
}

// eventSource is implemented by every aggregate root.
type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// Scope is the view an operation gets of its unit of work: the transaction,
// the balance keys it holds locks on and the advisories raised so far.
type Scope struct {
	Tx
	held       map[inventory.BalanceKey]struct{}
	advisories policy.Advisories
}

func newScope(tx Tx, keys []inventory.BalanceKey) *Scope {
	held := make(map[inventory.BalanceKey]struct{}, len(keys))
	for _, k := range keys {
		held[k] = struct{}{}
	}
	return &Scope{Tx: tx, held: held}
}

// Holds reports whether the scope owns the lock for key.
func (s *Scope) Holds(key inventory.BalanceKey) bool {
	_, ok := s.held[key]
	return ok
}

// Advise records a verdict; only warnings are kept.
func (s *Scope) Advise(v policy.Verdict) {
	s.advisories.Add(v)
}

// Advisories returns the warnings raised in this scope.
func (s *Scope) Advisories() policy.Advisories {
	return s.advisories
}

// Record moves the pending events of the given aggregates to the unit of
// work's outgoing queue.
func (s *Scope) Record(aggregates ...eventSource) {
	for _, a := range aggregates {
		if events := a.GetDomainEvents(); len(events) > 0 {
			s.Emit(events...)
			a.ClearDomainEvents()
		}
	}
}
