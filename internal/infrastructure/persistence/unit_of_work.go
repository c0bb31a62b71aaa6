package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxWriter stores events as outbox rows inside the caller's transaction.
type OutboxWriter interface {
	Write(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

// GormUnitOfWork implements ledger.UnitOfWork over one database transaction.
// Events emitted during the unit are written to the outbox before commit
// and, when a publisher is set, also handed to it after commit.
type GormUnitOfWork struct {
	db        *gorm.DB
	outbox    OutboxWriter
	publisher shared.EventPublisher
}

// NewGormUnitOfWork creates a GormUnitOfWork. outbox may be nil only in
// tools that never emit events.
func NewGormUnitOfWork(db *gorm.DB, outbox OutboxWriter) *GormUnitOfWork {
	return &GormUnitOfWork{db: db, outbox: outbox}
}

// SetPublisher hands committed events to p in-process.
func (u *GormUnitOfWork) SetPublisher(p shared.EventPublisher) {
	u.publisher = p
}

// Execute runs fn in a transaction. If fn returns an error, the transaction is rolled back.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(tx ledger.Tx) error) error {
	var committed []shared.DomainEvent
	err := u.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := newGormTx(db)
		if err := fn(tx); err != nil {
			return err
		}
		if len(tx.events) == 0 {
			return nil
		}
		if u.outbox == nil {
			logger.FromContext(ctx).Warn("Dropping events: no outbox configured", zap.Int("events", len(tx.events)))
			return nil
		}
		if err := u.outbox.Write(ctx, db, tx.events...); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}
		committed = tx.events
		return nil
	})
	if err != nil {
		return translateError(err)
	}
	if u.publisher != nil && len(committed) > 0 {
		if err := u.publisher.Publish(ctx, committed...); err != nil {
			logger.FromContext(ctx).Warn("Failed to publish events after commit",
				zap.Int("events", len(committed)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// translateError maps unique-key violations raised by racing writers to a
// conflict so the coordinator retries the unit of work.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError(shared.CodeConflict, fmt.Sprintf("concurrent write: %v", err))
	}
	return err
}

type balanceRead struct {
	sequence int64
	exists   bool
}

// gormTx is one open unit of work. It remembers the version of every
// document and the sequence of every balance it read, so writes can be
// guarded against concurrent changes.
type gormTx struct {
	db       *gorm.DB
	events   []shared.DomainEvent
	versions map[uuid.UUID]int
	balances map[inventory.BalanceKey]balanceRead
}

func newGormTx(db *gorm.DB) *gormTx {
	return &gormTx{
		db:       db,
		versions: make(map[uuid.UUID]int),
		balances: make(map[inventory.BalanceKey]balanceRead),
	}
}

// Emit implements ledger.Tx.
func (t *gormTx) Emit(events ...shared.DomainEvent) {
	t.events = append(t.events, events...)
}

func (t *gormTx) Movements() inventory.MovementRepository       { return movementRepository{t} }
func (t *gormTx) Balances() inventory.BalanceRepository         { return balanceRepository{t} }
func (t *gormTx) Batches() inventory.BatchRepository            { return batchRepository{t} }
func (t *gormTx) Transfers() transfer.TransferRepository        { return transferRepository{t} }
func (t *gormTx) ShopOrders() transfer.ShopOrderRepository      { return shopOrderRepository{t} }
func (t *gormTx) Disputes() transfer.DisputeRepository          { return disputeRepository{t} }
func (t *gormTx) Sales() sales.SaleRepository                   { return saleRepository{t} }
func (t *gormTx) Refunds() sales.RefundRepository               { return refundRepository{t} }
func (t *gormTx) CreditAccounts() sales.CreditAccountRepository { return creditAccountRepository{t} }
func (t *gormTx) CashUps() cash.CashUpRepository                { return cashUpRepository{t} }
func (t *gormTx) Remittances() cash.RemittanceRepository        { return remittanceRepository{t} }

func (t *gormTx) ReturnRequests() transfer.ReturnRequestRepository {
	return returnRequestRepository{t}
}

// Ensure GormUnitOfWork implements ledger.UnitOfWork
var _ ledger.UnitOfWork = (*GormUnitOfWork)(nil)

// Ensure gormTx implements ledger.Tx
var _ ledger.Tx = (*gormTx)(nil)
