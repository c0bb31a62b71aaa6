package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []StockAlert
	err    error
}

func (n *recordingNotifier) SendAlert(_ context.Context, a StockAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func TestStockAlertHandler_LowStock(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewStockAlertHandler(zaptest.NewLogger(t)).WithNotifier(notifier)
	batch := uuid.New()
	key := inventory.NewBalanceKey(uuid.New(), uuid.New(), uuid.New(), &batch)

	require.NoError(t, h.Handle(context.Background(), inventory.NewLowStockEvent(key, decimal.NewFromInt(2), decimal.NewFromInt(5))))
	require.NoError(t, h.Handle(context.Background(), inventory.NewLowStockEvent(key, decimal.Zero, decimal.NewFromInt(5))))

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, TypeLowStock, notifier.alerts[0].Type)
	assert.Equal(t, key.TenantID.String(), notifier.alerts[0].TenantID)
	assert.Equal(t, batch.String(), notifier.alerts[0].BatchID)
	assert.Equal(t, "5", notifier.alerts[0].Threshold)
	assert.Equal(t, TypeOutOfStock, notifier.alerts[1].Type)
}

func TestStockAlertHandler_Expiry(t *testing.T) {
	notifier := &recordingNotifier{}
	h := NewStockAlertHandler(zaptest.NewLogger(t)).WithNotifier(notifier)
	now := time.Now()
	soon := now.Add(72*time.Hour + time.Hour)
	past := now.Add(-72 * time.Hour)
	b := &inventory.Batch{TenantID: uuid.New(), ProductID: uuid.New(), LocationID: uuid.New(), BatchNumber: "B-7", ExpiryDate: &soon}
	b.ID = uuid.New()
	loc := uuid.New()

	require.NoError(t, h.Handle(context.Background(), inventory.NewExpiryAlertEvent(b, loc, decimal.NewFromInt(9), now)))
	b.ExpiryDate = &past
	require.NoError(t, h.Handle(context.Background(), inventory.NewExpiryAlertEvent(b, loc, decimal.NewFromInt(9), now)))

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, TypeExpiring, notifier.alerts[0].Type)
	assert.Equal(t, 3, notifier.alerts[0].DaysRemaining)
	assert.Equal(t, "B-7", notifier.alerts[0].BatchNumber)
	assert.Equal(t, loc.String(), notifier.alerts[0].LocationID)
	assert.Equal(t, TypeExpired, notifier.alerts[1].Type)
}

func TestStockAlertHandler_NotifierFailureIsSwallowed(t *testing.T) {
	h := NewStockAlertHandler(zaptest.NewLogger(t)).WithNotifier(&recordingNotifier{err: errors.New("smtp down")})
	key := inventory.NewBalanceKey(uuid.New(), uuid.New(), uuid.New(), nil)

	assert.NoError(t, h.Handle(context.Background(), inventory.NewLowStockEvent(key, decimal.NewFromInt(1), decimal.NewFromInt(3))))
}

func TestStockAlertHandler_UnexpectedEvent(t *testing.T) {
	h := NewStockAlertHandler(nil)

	err := h.Handle(context.Background(), testutil.NewTestEvent("Other", uuid.New()))

	assert.Error(t, err)
	assert.ElementsMatch(t, []string{inventory.EventTypeLowStock, inventory.EventTypeExpiryAlert}, h.EventTypes())
}

func TestLoggingNotifier(t *testing.T) {
	assert.NoError(t, NewLoggingNotifier(zaptest.NewLogger(t)).SendAlert(context.Background(), StockAlert{Type: TypeLowStock}))
}
