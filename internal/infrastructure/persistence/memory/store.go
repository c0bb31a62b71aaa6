// Package memory is an in-process implementation of the ledger unit of work
// and its repositories. Each unit of work stages its writes and commits them
// atomically; concurrent changes to the same document or balance surface as
// conflicts, which the ledger coordinator retries.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store holds committed state.
type Store struct {
	mu sync.RWMutex

	movements map[inventory.BalanceKey][]*inventory.StockMovement
	balances  map[inventory.BalanceKey]*inventory.StockBalance
	batches   map[uuid.UUID]*inventory.Batch
	creditTx  map[uuid.UUID][]sales.CreditTransaction

	transfers      *table[*transfer.Transfer]
	shopOrders     *table[*transfer.ShopOrder]
	returnRequests *table[*transfer.ReturnRequest]
	disputes       *table[*transfer.Dispute]
	sales          *table[*sales.Sale]
	refunds        *table[*sales.Refund]
	creditAccounts *table[*sales.CreditAccount]
	cashUps        *table[*cash.CashUpReport]
	remittances    *table[*cash.Remittance]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		movements:      make(map[inventory.BalanceKey][]*inventory.StockMovement),
		balances:       make(map[inventory.BalanceKey]*inventory.StockBalance),
		batches:        make(map[uuid.UUID]*inventory.Batch),
		creditTx:       make(map[uuid.UUID][]sales.CreditTransaction),
		transfers:      newTable("transfer", cloneTransfer),
		shopOrders:     newTable("shop order", cloneShopOrder),
		returnRequests: newTable("return request", cloneReturnRequest),
		disputes:       newTable("dispute", cloneDispute),
		sales:          newTable("sale", cloneSale),
		refunds:        newTable("refund", cloneRefund),
		creditAccounts: newTable("credit account", cloneCreditAccount),
		cashUps:        newTable("cash-up report", cloneCashUp),
		remittances:    newTable("remittance", cloneRemittance),
	}
}

// UnitOfWork runs functions against a Store.
type UnitOfWork struct {
	store     *Store
	publisher shared.EventPublisher
}

// NewUnitOfWork creates a unit of work. Events emitted by a committed unit
// are handed to publisher, if set, after commit.
func NewUnitOfWork(store *Store, publisher shared.EventPublisher) *UnitOfWork {
	return &UnitOfWork{store: store, publisher: publisher}
}

// Execute implements ledger.UnitOfWork.
func (u *UnitOfWork) Execute(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx := newTx(u.store)
	if err := fn(tx); err != nil {
		return err
	}
	if err := u.store.commit(tx); err != nil {
		return err
	}
	if u.publisher != nil && len(tx.events) > 0 {
		if err := u.publisher.Publish(ctx, tx.events...); err != nil {
			logger.FromContext(ctx).Warn("Failed to publish events after commit",
				zap.Int("events", len(tx.events)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Store) commit(tx *Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range tx.balances {
		current := int64(0)
		if c, ok := s.balances[key]; ok {
			current = c.LastSequence
		}
		if current != tx.balanceSeq[key] {
			return shared.NewDomainError(shared.CodeConflict,
				fmt.Sprintf("balance %s moved concurrently", b.Key))
		}
	}
	for key, staged := range tx.movements {
		next := int64(len(s.movements[key]) + 1)
		for _, m := range staged {
			if m.Sequence != next {
				return shared.NewDomainError(shared.CodeConflict,
					fmt.Sprintf("movement sequence %d for %s is not next (%d)", m.Sequence, key, next))
			}
			next++
		}
	}
	for _, o := range tx.overlays() {
		if err := o.validate(); err != nil {
			return err
		}
	}

	for key, staged := range tx.movements {
		s.movements[key] = append(s.movements[key], staged...)
	}
	for key, b := range tx.balances {
		s.balances[key] = b
	}
	for id, b := range tx.batches {
		s.batches[id] = b
	}
	for id, txs := range tx.creditTx {
		s.creditTx[id] = append(s.creditTx[id], txs...)
	}
	for _, o := range tx.overlays() {
		o.apply()
	}
	return nil
}

var _ ledger.UnitOfWork = (*UnitOfWork)(nil)
