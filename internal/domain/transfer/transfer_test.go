package transfer

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestTransfer(t *testing.T, qty string) *Transfer {
	t.Helper()
	tr, err := NewTransfer(uuid.New(), uuid.New(), uuid.New(), uuid.New(), []ItemInput{
		{ProductID: uuid.New(), Quantity: dec(qty)},
	})
	require.NoError(t, err)
	return tr
}

func noCosts(items []Item) (map[uuid.UUID]*decimal.Decimal, error) {
	return nil, nil
}

func TestNewTransfer_Validation(t *testing.T) {
	loc := uuid.New()
	_, err := NewTransfer(uuid.New(), loc, loc, uuid.New(), []ItemInput{{ProductID: uuid.New(), Quantity: dec("1")}})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewTransfer(uuid.New(), uuid.New(), uuid.New(), uuid.New(), nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = NewTransfer(uuid.New(), uuid.New(), uuid.New(), uuid.New(), []ItemInput{{ProductID: uuid.New(), Quantity: dec("0")}})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	tr := newTestTransfer(t, "5")
	assert.Equal(t, StatusDraft, tr.Status())
	assert.Regexp(t, `^TRF-\d{8}-[0-9A-F]{8}$`, tr.TransferNumber)
	require.Len(t, tr.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeTransferCreated, tr.GetDomainEvents()[0].EventType())
}

func TestTransfer_SendAndReceive(t *testing.T) {
	tr := newTestTransfer(t, "20")
	itemID := tr.Items[0].ID
	actor := uuid.New()

	sentAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	cost := dec("2.5")
	err := tr.Send(actor, sentAt, func(items []Item) (map[uuid.UUID]*decimal.Decimal, error) {
		require.Len(t, items, 1)
		return map[uuid.UUID]*decimal.Decimal{itemID: &cost}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, tr.Status())
	require.NotNil(t, tr.Items[0].UnitCost)
	assert.Equal(t, "2.5", tr.Items[0].UnitCost.String())
	assert.Equal(t, actor, *tr.SentBy)
	assert.Equal(t, sentAt, *tr.SentAt)

	err = tr.Send(actor, sentAt, noCosts)
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition))

	plan, err := tr.PlanReceipt(map[uuid.UUID]decimal.Decimal{itemID: dec("15")})
	require.NoError(t, err)
	require.NoError(t, tr.Receive(actor, sentAt.Add(time.Hour), plan, func([]Receipt) error { return nil }))
	assert.Equal(t, StatusPartiallyReceived, tr.Status())
	assert.True(t, tr.Items[0].QuantityReceived.Equal(dec("15")))

	_, err = tr.PlanReceipt(map[uuid.UUID]decimal.Decimal{itemID: dec("6")})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	plan, err = tr.PlanReceipt(nil)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.True(t, plan[0].Quantity.Equal(dec("5")))
	require.NoError(t, tr.Receive(actor, sentAt.Add(time.Hour), plan, func([]Receipt) error { return nil }))
	assert.Equal(t, StatusReceived, tr.Status())
	assert.True(t, tr.IsFullyReceived())
	assert.Equal(t, sentAt.Add(time.Hour), *tr.ReceivedAt)

	_, err = tr.PlanReceipt(nil)
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition))
}

func TestTransfer_FailedEffectKeepsState(t *testing.T) {
	tr := newTestTransfer(t, "3")
	boom := errors.New("ledger down")

	err := tr.Send(uuid.New(), time.Now(), func([]Item) (map[uuid.UUID]*decimal.Decimal, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusDraft, tr.Status())
	assert.Nil(t, tr.SentAt)

	require.NoError(t, tr.Send(uuid.New(), time.Now(), noCosts))
	plan, err := tr.PlanReceipt(nil)
	require.NoError(t, err)
	err = tr.Receive(uuid.New(), time.Now(), plan, func([]Receipt) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusSent, tr.Status())
	assert.True(t, tr.Items[0].QuantityReceived.IsZero())
}

func TestTransfer_DisputeResolveClose(t *testing.T) {
	tr := newTestTransfer(t, "1")
	assert.True(t, errors.Is(tr.Resolve(), shared.ErrIllegalTransition))

	require.NoError(t, tr.Dispute())
	assert.Equal(t, StatusDisputed, tr.Status())
	require.NoError(t, tr.Resolve())
	assert.Equal(t, StatusResolved, tr.Status())
	require.NoError(t, tr.Close())
	assert.Equal(t, StatusClosed, tr.Status())
	assert.NotNil(t, tr.ClosedAt)
}

func TestShopOrder_Lifecycle(t *testing.T) {
	o, err := NewShopOrder(uuid.New(), uuid.New(), uuid.New(), uuid.New(), []ItemInput{
		{ProductID: uuid.New(), Quantity: dec("10")},
		{ProductID: uuid.New(), Quantity: dec("4")},
	})
	require.NoError(t, err)

	_, err = o.PlanFulfillment(nil)
	assert.True(t, errors.Is(err, shared.ErrIllegalTransition))

	assert.True(t, errors.Is(o.Approve(uuid.New()), shared.ErrIllegalTransition))
	require.NoError(t, o.Submit())
	require.NoError(t, o.Approve(uuid.New()))

	first := o.Items[0].ID
	second := o.Items[1].ID
	lines, err := o.PlanFulfillment(map[uuid.UUID]decimal.Decimal{first: dec("6"), second: dec("0")})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	trID := uuid.New()
	require.NoError(t, o.Fulfill(time.Now(), lines, func(l []FulfillmentLine) (uuid.UUID, error) { return trID, nil }))
	assert.Equal(t, OrderPartiallyFulfilled, o.Status())
	assert.Equal(t, []uuid.UUID{trID}, o.TransferIDs)

	lines, err = o.PlanFulfillment(nil)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Quantity.Equal(dec("4")))
	require.NoError(t, o.Fulfill(time.Now(), lines, func([]FulfillmentLine) (uuid.UUID, error) { return uuid.New(), nil }))
	assert.Equal(t, OrderFulfilled, o.Status())
	assert.NotNil(t, o.FulfilledAt)

	require.NoError(t, o.Close())
	assert.Equal(t, OrderClosed, o.Status())
}

func TestReturnRequest_Approve(t *testing.T) {
	newReturn := func() *ReturnRequest {
		r, err := NewReturnRequest(uuid.New(), uuid.New(), uuid.New(), uuid.New(), []ReturnItemInput{
			{ProductID: uuid.New(), Quantity: dec("5")},
			{ProductID: uuid.New(), Quantity: dec("2"), Condition: ConditionDamaged, Reason: "crushed"},
		})
		require.NoError(t, err)
		return r
	}

	t.Run("full approval", func(t *testing.T) {
		r := newReturn()
		assert.Equal(t, ConditionGood, r.Items[0].Condition)
		lines, err := r.PlanApproval(nil)
		require.NoError(t, err)
		var moved []ReturnLine
		require.NoError(t, r.Approve(uuid.New(), time.Now(), lines, func(l []ReturnLine) error { moved = l; return nil }))
		assert.Equal(t, ReturnApproved, r.Status())
		assert.Len(t, moved, 2)
		assert.True(t, r.Items[1].QuantityApproved.Equal(dec("2")))
	})

	t.Run("partial approval skips zero lines", func(t *testing.T) {
		r := newReturn()
		lines, err := r.PlanApproval(map[uuid.UUID]decimal.Decimal{r.Items[1].ID: dec("0")})
		require.NoError(t, err)
		var moved []ReturnLine
		require.NoError(t, r.Approve(uuid.New(), time.Now(), lines, func(l []ReturnLine) error { moved = l; return nil }))
		assert.Equal(t, ReturnPartiallyApproved, r.Status())
		assert.Len(t, moved, 1)

		_, err = r.PlanApproval(nil)
		assert.True(t, errors.Is(err, shared.ErrIllegalTransition))
	})

	t.Run("rejects over-approval and bad condition", func(t *testing.T) {
		r := newReturn()
		_, err := r.PlanApproval(map[uuid.UUID]decimal.Decimal{r.Items[0].ID: dec("6")})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		_, err = NewReturnRequest(uuid.New(), uuid.New(), uuid.New(), uuid.New(), []ReturnItemInput{
			{ProductID: uuid.New(), Quantity: dec("1"), Condition: "lost"},
		})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestDispute(t *testing.T) {
	ref := shared.Reference{Kind: shared.RefTransfer, ID: uuid.New()}
	author := uuid.New()
	d, err := NewDispute(uuid.New(), author, ref, "short delivery", "two cases missing")
	require.NoError(t, err)
	require.Len(t, d.Messages, 1)
	assert.Equal(t, EventTypeDisputeCreated, d.GetDomainEvents()[0].EventType())

	require.NoError(t, d.AddMessage(uuid.New(), "checking CCTV"))
	require.NoError(t, d.Resolve(uuid.New(), "recounted"))
	assert.True(t, d.Resolved)
	assert.Error(t, d.AddMessage(author, "late"))
	assert.True(t, errors.Is(d.Resolve(author, "again"), shared.ErrIllegalTransition))

	_, err = NewDispute(uuid.New(), author, shared.Reference{Kind: shared.RefBatch, ID: uuid.New()}, "x", "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	_, err = NewDispute(uuid.New(), author, shared.Reference{Kind: shared.RefTransfer}, "x", "")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
