package persistence_test

import (
	"context"
	"testing"
	"time"

	appcash "github.com/erp/retailops/internal/application/cash"
	"github.com/erp/retailops/internal/application/ledger"
	appsales "github.com/erp/retailops/internal/application/sales"
	apptransfer "github.com/erp/retailops/internal/application/transfer"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/erp/retailops/internal/infrastructure/event"
	"github.com/erp/retailops/internal/infrastructure/lock"
	"github.com/erp/retailops/internal/infrastructure/persistence"
	"github.com/erp/retailops/internal/infrastructure/persistence/models"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gormLedger struct {
	db        *gorm.DB
	tenant    uuid.UUID
	policies  *persistence.PolicyRepository
	published *testutil.RecordingPublisher
	svc       *ledger.Service
	actor     shared.Actor
}

func newGormLedger(t *testing.T) *gormLedger {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	require.NoError(t, db.AutoMigrate(models.All()...))

	uow := persistence.NewGormUnitOfWork(db, event.NewOutboxPublisher(event.NewRegisteredSerializer()))
	published := testutil.NewRecordingPublisher()
	uow.SetPublisher(published)

	policies := persistence.NewPolicyRepository(db)
	coord := ledger.NewCoordinator(uow, lock.NewMemoryLocker(lock.DefaultOptions()), ledger.CoordinatorConfig{
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	})
	return &gormLedger{
		db:        db,
		tenant:    uuid.New(),
		policies:  policies,
		published: published,
		svc:       ledger.NewService(coord, policies),
		actor:     shared.NewActor(uuid.New(), shared.CapTransferDispatch, shared.CapTransferReceive, shared.CapStockAdjust),
	}
}

func (g *gormLedger) seed(t *testing.T, key inventory.BalanceKey, qty, cost string) {
	t.Helper()
	unitCost := testutil.Dec(cost)
	_, err := g.svc.Coordinator().Run(context.Background(), []inventory.BalanceKey{key}, func(scope *ledger.Scope) error {
		_, err := g.svc.Append(context.Background(), scope, ledger.AppendRequest{
			Key:        key,
			Kind:       inventory.KindReceive,
			QuantityIn: testutil.Dec(qty),
			UnitCost:   &unitCost,
		})
		return err
	})
	require.NoError(t, err)
}

func (g *gormLedger) balance(t *testing.T, key inventory.BalanceKey) *inventory.StockBalance {
	t.Helper()
	b, err := g.svc.Balance(context.Background(), key)
	require.NoError(t, err)
	return b
}

func TestGormLedger_TransferRoundTrip(t *testing.T) {
	g := newGormLedger(t)
	ctx := context.Background()
	store, shop, product := uuid.New(), uuid.New(), uuid.New()
	from := inventory.NewBalanceKey(g.tenant, store, product, nil)
	to := inventory.NewBalanceKey(g.tenant, shop, product, nil)
	g.seed(t, from, "40", "2.50")

	svc := apptransfer.NewService(g.svc)
	tr, err := svc.CreateTransfer(ctx, g.actor, apptransfer.CreateTransferRequest{
		TenantID:       g.tenant,
		FromLocationID: store,
		ToLocationID:   shop,
		Items:          []apptransfer.ItemRequest{{ProductID: product, Quantity: testutil.Dec("15")}},
	})
	require.NoError(t, err)

	_, err = svc.SendTransfer(ctx, g.actor, g.tenant, tr.ID)
	require.NoError(t, err)
	assert.True(t, g.balance(t, from).OnHand.Equal(testutil.Dec("25")))
	assert.True(t, g.balance(t, to).InTransit.Equal(testutil.Dec("15")))

	received, err := svc.ReceiveTransfer(ctx, g.actor, apptransfer.ReceiveTransferRequest{
		TenantID:   g.tenant,
		TransferID: tr.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusReceived, received.Status())

	reloaded, err := svc.GetTransfer(ctx, g.tenant, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusReceived, reloaded.Status())
	require.Len(t, reloaded.Items, 1)
	assert.True(t, reloaded.Items[0].QuantityReceived.Equal(testutil.Dec("15")))

	dest := g.balance(t, to)
	assert.True(t, dest.OnHand.Equal(testutil.Dec("15")))
	assert.True(t, dest.InTransit.IsZero())
	require.NotNil(t, dest.AverageCost)
	assert.True(t, dest.AverageCost.Equal(testutil.Dec("2.5")))

	for _, k := range []inventory.BalanceKey{from, to} {
		d, err := g.svc.Verify(ctx, k)
		require.NoError(t, err)
		assert.Nil(t, d, "%s matches its movements", k)
	}

	movements, err := g.svc.MovementsByReference(ctx, g.tenant, tr.Reference())
	require.NoError(t, err)
	assert.Len(t, movements, 3)

	var outbox []models.OutboxEntryModel
	require.NoError(t, g.db.Where("aggregate_id = ?", tr.ID).Find(&outbox).Error)
	types := make([]string, 0, len(outbox))
	for _, e := range outbox {
		types = append(types, e.EventType)
		assert.Equal(t, shared.OutboxPending, e.Status)
	}
	assert.ElementsMatch(t, []string{
		transfer.EventTypeTransferCreated,
		transfer.EventTypeTransferSent,
		transfer.EventTypeTransferReceived,
	}, types)
	assert.Len(t, g.published.OfType(transfer.EventTypeTransferSent), 1, "committed events are also published in-process")
}

func TestGormLedger_BlocksNegativeStock(t *testing.T) {
	g := newGormLedger(t)
	ctx := context.Background()
	key := inventory.NewBalanceKey(g.tenant, uuid.New(), uuid.New(), nil)
	g.seed(t, key, "5", "1.00")

	_, err := g.svc.Coordinator().Run(ctx, []inventory.BalanceKey{key}, func(scope *ledger.Scope) error {
		_, err := g.svc.Append(ctx, scope, ledger.AppendRequest{
			Key:                      key,
			Kind:                     inventory.KindSale,
			QuantityOut:              testutil.Dec("8"),
			ApplyNegativeStockPolicy: true,
		})
		return err
	})

	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.True(t, g.balance(t, key).OnHand.Equal(testutil.Dec("5")), "rejected append leaves the balance alone")

	movements, err := g.svc.Movements(ctx, key)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestGormLedger_WarnPolicyFromDatabase(t *testing.T) {
	g := newGormLedger(t)
	ctx := context.Background()
	settings := policy.DefaultTenantSettings(g.tenant)
	settings.NegativeStockBehavior = policy.Warn
	require.NoError(t, g.policies.SetTenantSettings(ctx, settings))

	key := inventory.NewBalanceKey(g.tenant, uuid.New(), uuid.New(), nil)
	advisories, err := g.svc.Coordinator().Run(ctx, []inventory.BalanceKey{key}, func(scope *ledger.Scope) error {
		_, err := g.svc.Append(ctx, scope, ledger.AppendRequest{
			Key:                      key,
			Kind:                     inventory.KindSale,
			QuantityOut:              testutil.Dec("2"),
			ApplyNegativeStockPolicy: true,
		})
		return err
	})

	require.NoError(t, err)
	assert.Len(t, advisories, 1)
	assert.True(t, g.balance(t, key).OnHand.Equal(decimal.NewFromInt(-2)))
}

func TestGormLedger_CashUpNetsRefundsAndChange(t *testing.T) {
	g := newGormLedger(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	g.svc.SetClock(func() time.Time { return now })
	shop, product := uuid.New(), uuid.New()
	g.seed(t, inventory.NewBalanceKey(g.tenant, shop, product, nil), "10", "1.00")

	actor := shared.NewActor(uuid.New(), shared.CapRefundApprove)
	salesSvc := appsales.NewService(g.svc, g.policies)
	sell := func(cash string) *sales.Sale {
		res, err := salesSvc.ProcessSale(ctx, actor, appsales.ProcessSaleRequest{
			TenantID: g.tenant,
			ShopID:   shop,
			Items:    []appsales.SaleItemRequest{{ProductID: product, Quantity: testutil.Dec("1"), UnitPrice: testutil.Dec("10.00")}},
			Payments: []appsales.PaymentRequest{{Method: sales.PaymentCash, Amount: testutil.Dec(cash)}},
		})
		require.NoError(t, err)
		return res.Sale
	}
	returned := sell("10")
	sell("20")

	r, err := salesSvc.InitiateRefund(ctx, actor, appsales.InitiateRefundRequest{
		TenantID: g.tenant,
		SaleID:   returned.ID,
		Reason:   "faulty",
		Items:    []appsales.RefundItemRequest{{SaleItemID: returned.Items[0].ID, Quantity: testutil.Dec("1")}},
	})
	require.NoError(t, err)
	if r.Status() == sales.RefundInitiated {
		_, err = salesSvc.ApproveRefund(ctx, actor, g.tenant, r.ID)
		require.NoError(t, err)
	}
	_, err = salesSvc.CompleteRefund(ctx, actor, g.tenant, r.ID)
	require.NoError(t, err)

	cu, err := appcash.NewService(g.svc.Coordinator()).CreateCashUp(ctx, actor, appcash.CreateCashUpRequest{
		TenantID:    g.tenant,
		ShopID:      shop,
		PeriodStart: now.Add(-time.Hour),
		PeriodEnd:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, cu.Expected.Cash.Equal(testutil.Dec("10")), "expected cash %s", cu.Expected.Cash)
}
