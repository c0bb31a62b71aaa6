package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/infrastructure/lock"
	"github.com/erp/retailops/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// FixedNow is the clock reading every harness starts with.
var FixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Ledger is an in-memory ledger wired the way the server wires it.
type Ledger struct {
	TenantID    uuid.UUID
	Store       *memory.Store
	Policies    *memory.PolicySource
	Publisher   *RecordingPublisher
	Locker      *lock.MemoryLocker
	UnitOfWork  *memory.UnitOfWork
	Coordinator *ledger.Coordinator
	Service     *ledger.Service
	Now         time.Time
}

// NewLedger wires a fresh ledger for one tenant.
func NewLedger(t *testing.T) *Ledger {
	t.Helper()

	l := &Ledger{
		TenantID:  uuid.New(),
		Store:     memory.NewStore(),
		Policies:  memory.NewPolicySource(),
		Publisher: NewRecordingPublisher(),
		Locker:    lock.NewMemoryLocker(lock.DefaultOptions()),
		Now:       FixedNow,
	}
	l.UnitOfWork = memory.NewUnitOfWork(l.Store, l.Publisher)
	l.Coordinator = ledger.NewCoordinator(l.UnitOfWork, l.Locker, ledger.CoordinatorConfig{
		MaxAttempts:  5,
		RetryBackoff: time.Millisecond,
	})
	l.Service = ledger.NewService(l.Coordinator, l.Policies)
	l.Service.SetClock(l.Clock)
	return l
}

// Clock returns the harness time.
func (l *Ledger) Clock() time.Time {
	return l.Now
}

// Key builds a batchless key in the harness tenant.
func (l *Ledger) Key(locationID, productID uuid.UUID) inventory.BalanceKey {
	return inventory.NewBalanceKey(l.TenantID, locationID, productID, nil)
}

// Admin returns an actor holding every capability.
func (l *Ledger) Admin() shared.Actor {
	return shared.NewActor(uuid.New(),
		shared.CapStockAdjust,
		shared.CapRefundApprove,
		shared.CapTransferDispatch,
		shared.CapTransferReceive,
		shared.CapShopOrderApprove,
		shared.CapShopOrderFulfill,
		shared.CapReturnApprove,
		shared.CapCashUpApprove,
		shared.CapRemittanceApprove,
		shared.CapDisputeResolve,
		shared.CapCreditManage,
	)
}

// Seed books qty into key at unitCost through the ledger.
func (l *Ledger) Seed(t *testing.T, key inventory.BalanceKey, qty, unitCost string) {
	t.Helper()

	cost := decimal.RequireFromString(unitCost)
	_, err := l.Coordinator.Run(context.Background(), []inventory.BalanceKey{key}, func(scope *ledger.Scope) error {
		_, err := l.Service.Append(context.Background(), scope, ledger.AppendRequest{
			Key:        key,
			Kind:       inventory.KindReceive,
			QuantityIn: decimal.RequireFromString(qty),
			UnitCost:   &cost,
			Notes:      "seed",
		})
		return err
	})
	require.NoError(t, err, "seed %s", key)
}

// Balance reads the cached balance of key.
func (l *Ledger) Balance(t *testing.T, key inventory.BalanceKey) *inventory.StockBalance {
	t.Helper()

	b, err := l.Service.Balance(context.Background(), key)
	require.NoError(t, err)
	return b
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
