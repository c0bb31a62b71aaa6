package sales_test

import (
	"context"
	"errors"
	"testing"

	appsales "github.com/erp/retailops/internal/application/sales"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	l       *testutil.Ledger
	svc     *appsales.Service
	actor   shared.Actor
	shop    uuid.UUID
	product uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	l := testutil.NewLedger(t)
	return &fixture{
		l:       l,
		svc:     appsales.NewService(l.Service, l.Policies),
		actor:   l.Admin(),
		shop:    uuid.New(),
		product: uuid.New(),
	}
}

func (f *fixture) saleRequest(qty, price string, payments ...appsales.PaymentRequest) appsales.ProcessSaleRequest {
	if len(payments) == 0 {
		total := testutil.Dec(qty).Mul(testutil.Dec(price))
		payments = []appsales.PaymentRequest{{Method: sales.PaymentCash, Amount: total}}
	}
	return appsales.ProcessSaleRequest{
		TenantID: f.l.TenantID,
		ShopID:   f.shop,
		Items: []appsales.SaleItemRequest{{
			ProductID: f.product,
			Quantity:  testutil.Dec(qty),
			UnitPrice: testutil.Dec(price),
		}},
		Payments: payments,
	}
}

func (f *fixture) sell(t *testing.T, qty, price string) *sales.Sale {
	t.Helper()
	res, err := f.svc.ProcessSale(context.Background(), f.actor, f.saleRequest(qty, price))
	require.NoError(t, err)
	return res.Sale
}

func (f *fixture) marginRule(behavior policy.Behavior, minimum string) {
	f.l.Policies.AddMarginRule(policy.MarginRule{
		TenantID:             f.l.TenantID,
		ShopID:               &f.shop,
		ProductID:            &f.product,
		MinimumMarginPercent: testutil.Dec(minimum),
		Behavior:             behavior,
		Active:               true,
	})
}

func TestProcessSale(t *testing.T) {
	f := newFixture(t)
	key := f.l.Key(f.shop, f.product)
	f.l.Seed(t, key, "10", "2.00")

	sale := f.sell(t, "3", "5.00")

	assert.Equal(t, sales.SaleCompleted, sale.Status())
	assert.Equal(t, "15", sale.Total.String())
	require.NotNil(t, sale.Items[0].UnitCost)
	assert.Equal(t, "2", sale.Items[0].UnitCost.String())
	assert.True(t, f.l.Balance(t, key).OnHand.Equal(testutil.Dec("7")))
	assert.Len(t, f.l.Publisher.OfType(sales.EventTypeSaleCompleted), 1)

	movements, err := f.l.Service.MovementsByReference(context.Background(), f.l.TenantID, sale.Reference())
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.True(t, movements[0].QuantityOut.Equal(testutil.Dec("3")))

	stored, err := f.svc.GetSale(context.Background(), f.l.TenantID, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.SaleNumber, stored.SaleNumber)
}

func TestProcessSale_Underpaid(t *testing.T) {
	f := newFixture(t)
	f.l.Seed(t, f.l.Key(f.shop, f.product), "10", "2.00")

	_, err := f.svc.ProcessSale(context.Background(), f.actor,
		f.saleRequest("3", "5.00", appsales.PaymentRequest{Method: sales.PaymentCash, Amount: testutil.Dec("10")}))

	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	assert.True(t, f.l.Balance(t, f.l.Key(f.shop, f.product)).OnHand.Equal(testutil.Dec("10")))
}

func TestProcessSale_CashChange(t *testing.T) {
	f := newFixture(t)
	key := f.l.Key(f.shop, f.product)
	f.l.Seed(t, key, "10", "2.00")

	res, err := f.svc.ProcessSale(context.Background(), f.actor,
		f.saleRequest("3", "5.00", appsales.PaymentRequest{Method: sales.PaymentCash, Amount: testutil.Dec("20")}))
	require.NoError(t, err)
	assert.Equal(t, "15", res.Sale.Total.String())
	assert.Equal(t, "5", res.Sale.ChangeGiven.String())
	assert.True(t, f.l.Balance(t, key).OnHand.Equal(testutil.Dec("7")))

	stored, err := f.svc.GetSale(context.Background(), f.l.TenantID, res.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "15", stored.NetCash().String())

	_, err = f.svc.ProcessSale(context.Background(), f.actor,
		f.saleRequest("1", "5.00", appsales.PaymentRequest{Method: sales.PaymentCard, Amount: testutil.Dec("10")}))
	assert.True(t, errors.Is(err, shared.ErrInvalidInput), "card tender cannot give change")
}

func TestProcessSale_FailedLineLeavesEarlierLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scarce := uuid.New()
	first := f.l.Key(f.shop, f.product)
	second := f.l.Key(f.shop, scarce)
	f.l.Seed(t, first, "10", "2.00")
	f.l.Seed(t, second, "1", "2.00")

	_, err := f.svc.ProcessSale(ctx, f.actor, appsales.ProcessSaleRequest{
		TenantID: f.l.TenantID,
		ShopID:   f.shop,
		Items: []appsales.SaleItemRequest{
			{ProductID: f.product, Quantity: testutil.Dec("4"), UnitPrice: testutil.Dec("5.00")},
			{ProductID: scarce, Quantity: testutil.Dec("2"), UnitPrice: testutil.Dec("5.00")},
		},
		Payments: []appsales.PaymentRequest{{Method: sales.PaymentCash, Amount: testutil.Dec("30")}},
	})
	require.True(t, errors.Is(err, shared.ErrInsufficientStock), "got %v", err)

	assert.True(t, f.l.Balance(t, first).OnHand.Equal(testutil.Dec("10")))
	assert.True(t, f.l.Balance(t, second).OnHand.Equal(testutil.Dec("1")))
	for _, key := range []inventory.BalanceKey{first, second} {
		movements, err := f.l.Service.Movements(ctx, key)
		require.NoError(t, err)
		assert.Len(t, movements, 1, "only the seed movement on %s", key)
	}
	assert.Empty(t, f.l.Publisher.OfType(sales.EventTypeSaleCompleted))
}

func TestProcessSale_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	key := f.l.Key(f.shop, f.product)
	f.l.Seed(t, key, "2", "2.00")

	_, err := f.svc.ProcessSale(context.Background(), f.actor, f.saleRequest("3", "5.00"))

	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	assert.True(t, f.l.Balance(t, key).OnHand.Equal(testutil.Dec("2")))
	assert.Empty(t, f.l.Publisher.OfType(sales.EventTypeSaleCompleted))
}

func TestProcessSale_MarginPolicy(t *testing.T) {
	tests := []struct {
		name     string
		behavior policy.Behavior
		price    string
		wantErr  bool
		warnings int
	}{
		{name: "above minimum", behavior: policy.Block, price: "5.00"},
		{name: "warn below minimum", behavior: policy.Warn, price: "2.50", warnings: 1},
		{name: "block below minimum", behavior: policy.Block, price: "2.50", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			key := f.l.Key(f.shop, f.product)
			f.l.Seed(t, key, "10", "2.00")
			f.marginRule(tt.behavior, "50")

			res, err := f.svc.ProcessSale(context.Background(), f.actor, f.saleRequest("1", tt.price))

			if tt.wantErr {
				assert.True(t, errors.Is(err, shared.ErrPolicyViolation))
				var violation *shared.PolicyViolationError
				require.ErrorAs(t, err, &violation)
				assert.Equal(t, policy.Margin, violation.Policy)
				assert.True(t, f.l.Balance(t, key).OnHand.Equal(testutil.Dec("10")))
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.Advisories, tt.warnings)
			assert.Len(t, f.l.Publisher.OfType(sales.EventTypeMarginViolated), tt.warnings)
			assert.True(t, f.l.Balance(t, key).OnHand.Equal(testutil.Dec("9")))
		})
	}
}

func TestProcessSale_ShopCostFallback(t *testing.T) {
	f := newFixture(t)
	f.l.Policies.SetShopCost(f.l.TenantID, f.shop, f.product, testutil.Dec("4.00"))
	settings := policy.DefaultTenantSettings(f.l.TenantID)
	settings.NegativeStockBehavior = policy.Allow
	f.l.Policies.SetTenantSettings(settings)
	f.marginRule(policy.Warn, "50")

	res, err := f.svc.ProcessSale(context.Background(), f.actor, f.saleRequest("1", "5.00"))
	require.NoError(t, err)

	require.NotNil(t, res.Sale.Items[0].UnitCost)
	assert.Equal(t, "4", res.Sale.Items[0].UnitCost.String())
	assert.Len(t, res.Advisories, 1, "25% markup on the shop cost")
	assert.True(t, f.l.Balance(t, f.l.Key(f.shop, f.product)).OnHand.Equal(testutil.Dec("-1")))
}

func TestProcessSale_CreditAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.l.Seed(t, f.l.Key(f.shop, f.product), "100", "1.00")
	customer := uuid.New()

	account, err := f.svc.OpenCreditAccount(ctx, f.actor, appsales.OpenCreditAccountRequest{
		TenantID:    f.l.TenantID,
		CustomerID:  customer,
		CreditLimit: testutil.Dec("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, account.PaymentTermsDays)

	_, err = f.svc.OpenCreditAccount(ctx, f.actor, appsales.OpenCreditAccountRequest{TenantID: f.l.TenantID, CustomerID: customer})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput), "one account per customer")

	onAccount := func(qty, price string) (*appsales.SaleResult, error) {
		req := f.saleRequest(qty, price, appsales.PaymentRequest{
			Method: sales.PaymentCreditAccount,
			Amount: testutil.Dec(qty).Mul(testutil.Dec(price)),
		})
		req.CustomerID = &customer
		return f.svc.ProcessSale(ctx, f.actor, req)
	}

	first, err := onAccount("6", "10.00")
	require.NoError(t, err)
	assert.Empty(t, first.Advisories)
	require.NotNil(t, first.Sale.Payments[0].CreditAccountID)
	assert.Equal(t, account.ID, *first.Sale.Payments[0].CreditAccountID)

	second, err := onAccount("6", "10.00")
	require.NoError(t, err)
	require.Len(t, second.Advisories, 1)
	assert.Equal(t, policy.CreditLimit, second.Advisories[0].Policy)
	assert.Len(t, f.l.Publisher.OfType(sales.EventTypeCreditLimitExceeded), 1)

	account, err = f.svc.GetCreditAccount(ctx, f.l.TenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.CreditOverLimit, account.Status())
	assert.Equal(t, "120", account.Balance.String())

	account, err = f.svc.RecordCreditPayment(ctx, f.actor, appsales.CreditPaymentRequest{
		TenantID:  f.l.TenantID,
		AccountID: account.ID,
		Amount:    testutil.Dec("50"),
	})
	require.NoError(t, err)
	assert.Equal(t, sales.CreditActive, account.Status(), "paid back under the limit")
	assert.Equal(t, "70", account.Balance.String())

	_, err = f.svc.SuspendCreditAccount(ctx, f.actor, f.l.TenantID, account.ID)
	require.NoError(t, err)
	_, err = onAccount("4", "10.00")
	assert.True(t, errors.Is(err, shared.ErrPolicyViolation), "suspended account over its limit")

	txs, err := f.svc.CreditTransactions(ctx, f.l.TenantID, account.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, sales.CreditTxSale, txs[0].Kind)
	assert.Equal(t, sales.CreditTxPayment, txs[2].Kind)
	assert.Equal(t, "70", txs[2].BalanceAfter.String())
}

func TestProcessSale_CreditWithoutAccount(t *testing.T) {
	f := newFixture(t)
	f.l.Seed(t, f.l.Key(f.shop, f.product), "10", "1.00")
	customer := uuid.New()

	req := f.saleRequest("1", "5.00", appsales.PaymentRequest{Method: sales.PaymentCreditAccount, Amount: testutil.Dec("5")})
	req.CustomerID = &customer
	_, err := f.svc.ProcessSale(context.Background(), f.actor, req)

	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.True(t, f.l.Balance(t, f.l.Key(f.shop, f.product)).OnHand.Equal(testutil.Dec("10")))
}

func TestCreditAccount_Capabilities(t *testing.T) {
	f := newFixture(t)
	clerk := shared.NewActor(uuid.New())

	_, err := f.svc.OpenCreditAccount(context.Background(), clerk, appsales.OpenCreditAccountRequest{
		TenantID:   f.l.TenantID,
		CustomerID: uuid.New(),
	})
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestRefund_Workflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.l.Key(f.shop, f.product)
	f.l.Seed(t, key, "10", "2.00")
	sale := f.sell(t, "5", "4.00")
	itemID := sale.Items[0].ID

	r, err := f.svc.InitiateRefund(ctx, f.actor, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "changed mind",
		Items:    []appsales.RefundItemRequest{{SaleItemID: itemID, Quantity: testutil.Dec("2")}},
	})
	require.NoError(t, err)
	assert.Equal(t, sales.RefundInitiated, r.Status())
	assert.Equal(t, "8", r.Amount.String())

	_, err = f.svc.InitiateRefund(ctx, f.actor, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "second",
		Items:    []appsales.RefundItemRequest{{SaleItemID: itemID, Quantity: testutil.Dec("4")}},
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput), "open refund holds 2 of 5")

	_, err = f.svc.CompleteRefund(ctx, f.actor, f.l.TenantID, r.ID)
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition), "not approved")

	_, err = f.svc.ApproveRefund(ctx, shared.NewActor(uuid.New()), f.l.TenantID, r.ID)
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	_, err = f.svc.ApproveRefund(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)

	r, err = f.svc.CompleteRefund(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.RefundCompleted, r.Status())
	assert.Len(t, f.l.Publisher.OfType(sales.EventTypeRefundCompleted), 1)

	b := f.l.Balance(t, key)
	assert.True(t, b.OnHand.Equal(testutil.Dec("7")))
	assert.Equal(t, "2", b.AverageCost.String())

	sale, err = f.svc.GetSale(ctx, f.l.TenantID, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.SalePartiallyRefunded, sale.Status())
	assert.True(t, sale.Items[0].QuantityRefunded.Equal(testutil.Dec("2")))

	damaged, err := f.svc.InitiateRefund(ctx, f.actor, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "broken seal",
		Items: []appsales.RefundItemRequest{{
			SaleItemID:     itemID,
			Quantity:       testutil.Dec("3"),
			Classification: sales.ClassDamaged,
		}},
	})
	require.NoError(t, err)
	_, err = f.svc.ApproveRefund(ctx, f.actor, f.l.TenantID, damaged.ID)
	require.NoError(t, err)
	_, err = f.svc.CompleteRefund(ctx, f.actor, f.l.TenantID, damaged.ID)
	require.NoError(t, err)

	b = f.l.Balance(t, key)
	assert.True(t, b.OnHand.Equal(testutil.Dec("7")), "damaged goods stay off the shelf")
	assert.True(t, b.Damaged.Equal(testutil.Dec("3")))

	sale, err = f.svc.GetSale(ctx, f.l.TenantID, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.SaleRefunded, sale.Status())

	refunds, err := f.svc.RefundsForSale(ctx, f.l.TenantID, sale.ID)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)

	d, err := f.l.Service.Verify(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRefund_AutoApproveUnderThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.l.Seed(t, f.l.Key(f.shop, f.product), "10", "2.00")
	threshold := testutil.Dec("5.00")
	settings := policy.DefaultTenantSettings(f.l.TenantID)
	settings.RefundApprovalThreshold = &threshold
	f.l.Policies.SetTenantSettings(settings)
	sale := f.sell(t, "5", "4.00")
	clerk := shared.NewActor(uuid.New())

	small, err := f.svc.InitiateRefund(ctx, clerk, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "small",
		Items:    []appsales.RefundItemRequest{{SaleItemID: sale.Items[0].ID, Quantity: testutil.Dec("1")}},
	})
	require.NoError(t, err)
	assert.Equal(t, sales.RefundApproved, small.Status())

	large, err := f.svc.InitiateRefund(ctx, clerk, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "large",
		Items:    []appsales.RefundItemRequest{{SaleItemID: sale.Items[0].ID, Quantity: testutil.Dec("2")}},
	})
	require.NoError(t, err)
	assert.Equal(t, sales.RefundInitiated, large.Status())

	rejected, err := f.svc.RejectRefund(ctx, f.actor, f.l.TenantID, large.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.RefundRejected, rejected.Status())
}

func TestVoidSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.l.Key(f.shop, f.product)
	f.l.Seed(t, key, "10", "2.00")
	customer := uuid.New()
	account, err := f.svc.OpenCreditAccount(ctx, f.actor, appsales.OpenCreditAccountRequest{
		TenantID:    f.l.TenantID,
		CustomerID:  customer,
		CreditLimit: testutil.Dec("500"),
	})
	require.NoError(t, err)

	req := f.saleRequest("5", "4.00", appsales.PaymentRequest{Method: sales.PaymentCreditAccount, Amount: testutil.Dec("20")})
	req.CustomerID = &customer
	res, err := f.svc.ProcessSale(ctx, f.actor, req)
	require.NoError(t, err)
	sale := res.Sale

	r, err := f.svc.InitiateRefund(ctx, f.actor, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "one returned",
		Items:    []appsales.RefundItemRequest{{SaleItemID: sale.Items[0].ID, Quantity: testutil.Dec("1")}},
	})
	require.NoError(t, err)
	_, err = f.svc.ApproveRefund(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)
	_, err = f.svc.CompleteRefund(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)

	_, err = f.svc.VoidSale(ctx, shared.NewActor(uuid.New()), appsales.VoidSaleRequest{TenantID: f.l.TenantID, SaleID: sale.ID, Reason: "x"})
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	voided, err := f.svc.VoidSale(ctx, f.actor, appsales.VoidSaleRequest{
		TenantID: f.l.TenantID,
		SaleID:   sale.ID,
		Reason:   "rung up twice",
	})
	require.NoError(t, err)
	assert.Equal(t, sales.SaleVoided, voided.Status())
	assert.Len(t, f.l.Publisher.OfType(sales.EventTypeSaleVoided), 1)
	assert.True(t, f.l.Balance(t, key).OnHand.Equal(testutil.Dec("10")))

	account, err = f.svc.GetCreditAccount(ctx, f.l.TenantID, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "4", account.Balance.String(), "the refunded 4.00 was paid out in cash")

	_, err = f.svc.VoidSale(ctx, f.actor, appsales.VoidSaleRequest{TenantID: f.l.TenantID, SaleID: sale.ID, Reason: "again"})
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition))
}
