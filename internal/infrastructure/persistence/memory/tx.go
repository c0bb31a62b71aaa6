package memory

import (
	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/google/uuid"
)

// Tx is one open unit of work over a Store.
type Tx struct {
	store  *Store
	events []shared.DomainEvent

	movements  map[inventory.BalanceKey][]*inventory.StockMovement
	balances   map[inventory.BalanceKey]*inventory.StockBalance
	balanceSeq map[inventory.BalanceKey]int64
	batches    map[uuid.UUID]*inventory.Batch
	creditTx   map[uuid.UUID][]sales.CreditTransaction

	transfers      *overlay[*transfer.Transfer]
	shopOrders     *overlay[*transfer.ShopOrder]
	returnRequests *overlay[*transfer.ReturnRequest]
	disputes       *overlay[*transfer.Dispute]
	sales          *overlay[*sales.Sale]
	refunds        *overlay[*sales.Refund]
	creditAccounts *overlay[*sales.CreditAccount]
	cashUps        *overlay[*cash.CashUpReport]
	remittances    *overlay[*cash.Remittance]
}

func newTx(s *Store) *Tx {
	return &Tx{
		store:          s,
		movements:      make(map[inventory.BalanceKey][]*inventory.StockMovement),
		balances:       make(map[inventory.BalanceKey]*inventory.StockBalance),
		balanceSeq:     make(map[inventory.BalanceKey]int64),
		batches:        make(map[uuid.UUID]*inventory.Batch),
		creditTx:       make(map[uuid.UUID][]sales.CreditTransaction),
		transfers:      newOverlay(s.transfers),
		shopOrders:     newOverlay(s.shopOrders),
		returnRequests: newOverlay(s.returnRequests),
		disputes:       newOverlay(s.disputes),
		sales:          newOverlay(s.sales),
		refunds:        newOverlay(s.refunds),
		creditAccounts: newOverlay(s.creditAccounts),
		cashUps:        newOverlay(s.cashUps),
		remittances:    newOverlay(s.remittances),
	}
}

type stagedTable interface {
	validate() error
	apply()
}

func (t *Tx) overlays() []stagedTable {
	return []stagedTable{
		t.transfers, t.shopOrders, t.returnRequests, t.disputes,
		t.sales, t.refunds, t.creditAccounts, t.cashUps, t.remittances,
	}
}

// Emit implements ledger.Tx.
func (t *Tx) Emit(events ...shared.DomainEvent) {
	t.events = append(t.events, events...)
}

func (t *Tx) Movements() inventory.MovementRepository       { return movementRepo{t} }
func (t *Tx) Balances() inventory.BalanceRepository         { return balanceRepo{t} }
func (t *Tx) Batches() inventory.BatchRepository            { return batchRepo{t} }
func (t *Tx) Transfers() transfer.TransferRepository        { return transferRepo{t} }
func (t *Tx) ShopOrders() transfer.ShopOrderRepository      { return shopOrderRepo{t} }
func (t *Tx) Disputes() transfer.DisputeRepository          { return disputeRepo{t} }
func (t *Tx) Sales() sales.SaleRepository                   { return saleRepo{t} }
func (t *Tx) Refunds() sales.RefundRepository               { return refundRepo{t} }
func (t *Tx) CreditAccounts() sales.CreditAccountRepository { return creditAccountRepo{t} }
func (t *Tx) CashUps() cash.CashUpRepository                { return cashUpRepo{t} }
func (t *Tx) Remittances() cash.RemittanceRepository        { return remittanceRepo{t} }

func (t *Tx) ReturnRequests() transfer.ReturnRequestRepository {
	return returnRequestRepo{t}
}

var _ ledger.Tx = (*Tx)(nil)
