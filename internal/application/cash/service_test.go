package cash_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appcash "github.com/erp/retailops/internal/application/cash"
	appsales "github.com/erp/retailops/internal/application/sales"
	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	l       *testutil.Ledger
	svc     *appcash.Service
	sales   *appsales.Service
	actor   shared.Actor
	shop    uuid.UUID
	product uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	l := testutil.NewLedger(t)
	f := &fixture{
		l:       l,
		svc:     appcash.NewService(l.Coordinator),
		sales:   appsales.NewService(l.Service, l.Policies),
		actor:   l.Admin(),
		shop:    uuid.New(),
		product: uuid.New(),
	}
	l.Seed(t, l.Key(f.shop, f.product), "100", "1.00")
	return f
}

func (f *fixture) sell(t *testing.T, qty string, payments ...appsales.PaymentRequest) *sales.Sale {
	t.Helper()
	res, err := f.sales.ProcessSale(context.Background(), f.actor, appsales.ProcessSaleRequest{
		TenantID: f.l.TenantID,
		ShopID:   f.shop,
		Items: []appsales.SaleItemRequest{{
			ProductID: f.product,
			Quantity:  testutil.Dec(qty),
			UnitPrice: testutil.Dec("10.00"),
		}},
		Payments: payments,
	})
	require.NoError(t, err)
	return res.Sale
}

func pay(method sales.PaymentMethod, amount string) appsales.PaymentRequest {
	return appsales.PaymentRequest{Method: method, Amount: testutil.Dec(amount)}
}

func (f *fixture) refund(t *testing.T, sl *sales.Sale, qty string) *sales.Refund {
	t.Helper()
	ctx := context.Background()
	r, err := f.sales.InitiateRefund(ctx, f.actor, appsales.InitiateRefundRequest{
		TenantID: f.l.TenantID,
		SaleID:   sl.ID,
		Reason:   "returned",
		Items:    []appsales.RefundItemRequest{{SaleItemID: sl.Items[0].ID, Quantity: testutil.Dec(qty)}},
	})
	require.NoError(t, err)
	if r.Status() == sales.RefundInitiated {
		_, err = f.sales.ApproveRefund(ctx, f.actor, f.l.TenantID, r.ID)
		require.NoError(t, err)
	}
	r, err = f.sales.CompleteRefund(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)
	return r
}

func (f *fixture) createCashUp(t *testing.T) *cash.CashUpReport {
	t.Helper()
	now := f.l.Now
	r, err := f.svc.CreateCashUp(context.Background(), f.actor, appcash.CreateCashUpRequest{
		TenantID:    f.l.TenantID,
		ShopID:      f.shop,
		PeriodStart: now.Add(-time.Hour),
		PeriodEnd:   now.Add(time.Hour),
	})
	require.NoError(t, err)
	return r
}

func TestCashUp_ExpectedFromSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sell(t, "3", pay(sales.PaymentCash, "20"), pay(sales.PaymentCard, "10"))
	f.sell(t, "1", pay(sales.PaymentMobile, "10"))
	voided := f.sell(t, "5", pay(sales.PaymentCash, "50"))
	_, err := f.sales.VoidSale(ctx, f.actor, appsales.VoidSaleRequest{TenantID: f.l.TenantID, SaleID: voided.ID, Reason: "test"})
	require.NoError(t, err)

	r := f.createCashUp(t)

	assert.Equal(t, cash.CashUpDraft, r.Status())
	assert.Equal(t, "20", r.Expected.Cash.String())
	assert.Equal(t, "10", r.Expected.Card.String())
	assert.Equal(t, "10", r.Expected.Mobile.String())
}

func TestCashUp_IgnoresOtherShopsAndPeriods(t *testing.T) {
	f := newFixture(t)
	f.sell(t, "1", pay(sales.PaymentCash, "10"))

	now := f.l.Now
	r, err := f.svc.CreateCashUp(context.Background(), f.actor, appcash.CreateCashUpRequest{
		TenantID:    f.l.TenantID,
		ShopID:      f.shop,
		PeriodStart: now.Add(time.Hour),
		PeriodEnd:   now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, r.Expected.Total().IsZero())

	_, err = f.svc.CreateCashUp(context.Background(), f.actor, appcash.CreateCashUpRequest{
		TenantID:    f.l.TenantID,
		ShopID:      f.shop,
		PeriodStart: now,
		PeriodEnd:   now.Add(-time.Hour),
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestCashUp_RefundsReduceExpectedCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	returned := f.sell(t, "1", pay(sales.PaymentCash, "10"))
	r := f.refund(t, returned, "1")
	assert.Equal(t, "10", r.Amount.String())
	require.NotNil(t, r.CompletedAt)
	assert.Equal(t, f.l.Now, *r.CompletedAt)

	cancelled := f.sell(t, "3", pay(sales.PaymentCash, "30"))
	f.refund(t, cancelled, "1")
	_, err := f.sales.VoidSale(ctx, f.actor, appsales.VoidSaleRequest{TenantID: f.l.TenantID, SaleID: cancelled.ID, Reason: "till error"})
	require.NoError(t, err)

	f.sell(t, "2", pay(sales.PaymentCash, "15"), pay(sales.PaymentCard, "5"))

	cu := f.createCashUp(t)
	assert.Equal(t, "15", cu.Expected.Cash.String())
	assert.Equal(t, "5", cu.Expected.Card.String())
}

func TestCashUp_RefundOutsidePeriod(t *testing.T) {
	f := newFixture(t)
	sl := f.sell(t, "1", pay(sales.PaymentCash, "10"))

	f.l.Now = f.l.Now.Add(3 * time.Hour)
	f.refund(t, sl, "1")

	f.l.Now = testutil.FixedNow
	cu := f.createCashUp(t)
	assert.Equal(t, "10", cu.Expected.Cash.String(), "refund falls in the next period")
}

func TestCashUp_ChangeTakenOffCash(t *testing.T) {
	f := newFixture(t)
	sl := f.sell(t, "1", pay(sales.PaymentCash, "20"))
	assert.Equal(t, "10", sl.ChangeGiven.String())
	f.sell(t, "2", pay(sales.PaymentCard, "15"), pay(sales.PaymentCash, "10"))

	cu := f.createCashUp(t)
	assert.Equal(t, "15", cu.Expected.Cash.String())
	assert.Equal(t, "15", cu.Expected.Card.String())
}

func TestCashUp_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sell(t, "4", pay(sales.PaymentCash, "40"))
	r := f.createCashUp(t)

	_, err := f.svc.ApproveCashUp(ctx, f.actor, f.l.TenantID, r.ID)
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition), "draft cannot be approved")

	r, err = f.svc.SubmitCashUp(ctx, f.actor, appcash.SubmitCashUpRequest{
		TenantID:            f.l.TenantID,
		ReportID:            r.ID,
		Actual:              cash.Tenders{Cash: testutil.Dec("37.50")},
		VarianceExplanation: "short change",
	})
	require.NoError(t, err)
	assert.Equal(t, cash.CashUpSubmitted, r.Status())
	assert.Equal(t, "-2.5", r.Variance.Cash.String())

	_, err = f.svc.ApproveCashUp(ctx, shared.NewActor(uuid.New()), f.l.TenantID, r.ID)
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	r, err = f.svc.ApproveCashUp(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, cash.CashUpApproved, r.Status())
	require.NotNil(t, r.ApprovedBy)

	r, err = f.svc.CloseCashUp(ctx, f.actor, f.l.TenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, cash.CashUpClosed, r.Status())

	stored, err := f.svc.GetCashUp(ctx, f.l.TenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, cash.CashUpClosed, stored.Status())
}

func TestRemittance_ExpectedFromCashUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sell(t, "5", pay(sales.PaymentCash, "50"))
	r := f.createCashUp(t)
	r, err := f.svc.SubmitCashUp(ctx, f.actor, appcash.SubmitCashUpRequest{
		TenantID: f.l.TenantID,
		ReportID: r.ID,
		Actual:   cash.Tenders{Cash: testutil.Dec("50")},
	})
	require.NoError(t, err)

	rem, err := f.svc.SubmitRemittance(ctx, f.actor, appcash.SubmitRemittanceRequest{
		TenantID:       f.l.TenantID,
		ShopID:         f.shop,
		CashUpReportID: &r.ID,
		Amount:         testutil.Dec("45"),
		Method:         cash.RemitBankTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, cash.RemittanceSubmitted, rem.Status())
	require.NotNil(t, rem.ExpectedAmount)
	assert.Equal(t, "50", rem.ExpectedAmount.String())
	assert.Len(t, f.l.Publisher.OfType(cash.EventTypeRemittanceSubmitted), 1)

	_, err = f.svc.ApproveRemittance(ctx, shared.NewActor(uuid.New()), appcash.ApproveRemittanceRequest{
		TenantID: f.l.TenantID, RemittanceID: rem.ID,
	})
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	rem, err = f.svc.ApproveRemittance(ctx, f.actor, appcash.ApproveRemittanceRequest{
		TenantID:            f.l.TenantID,
		RemittanceID:        rem.ID,
		VarianceExplanation: "float kept in till",
	})
	require.NoError(t, err)
	assert.Equal(t, "-5", rem.Variance.String())

	rem, err = f.svc.CloseRemittance(ctx, f.actor, f.l.TenantID, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, cash.RemittanceClosed, rem.Status())
	require.NotNil(t, rem.ReceivedBy)

	_, err = f.svc.ApproveRemittance(ctx, f.actor, appcash.ApproveRemittanceRequest{TenantID: f.l.TenantID, RemittanceID: rem.ID})
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition))
}

func TestRemittance_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.createCashUp(t)

	_, err := f.svc.SubmitRemittance(ctx, f.actor, appcash.SubmitRemittanceRequest{
		TenantID:       f.l.TenantID,
		ShopID:         uuid.New(),
		CashUpReportID: &r.ID,
		Amount:         testutil.Dec("10"),
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput), "cash-up of another shop")

	_, err = f.svc.SubmitRemittance(ctx, f.actor, appcash.SubmitRemittanceRequest{
		TenantID: f.l.TenantID,
		ShopID:   f.shop,
		Amount:   testutil.Dec("0"),
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	missing := uuid.New()
	_, err = f.svc.SubmitRemittance(ctx, f.actor, appcash.SubmitRemittanceRequest{
		TenantID:       f.l.TenantID,
		ShopID:         f.shop,
		CashUpReportID: &missing,
		Amount:         testutil.Dec("10"),
	})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.Empty(t, f.l.Publisher.OfType(cash.EventTypeRemittanceSubmitted))
}
