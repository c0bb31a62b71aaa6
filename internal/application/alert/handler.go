// Package alert turns ledger warnings (low stock and expiring batches) into
// notifications.
package alert

import (
	"context"
	"fmt"

	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types carried on StockAlert.Type.
const (
	TypeLowStock   = "low_stock"
	TypeOutOfStock = "out_of_stock"
	TypeExpiring   = "expiring"
	TypeExpired    = "expired"
)

// StockAlert is the channel-neutral form of a ledger warning.
type StockAlert struct {
	TenantID      string `json:"tenant_id"`
	Type          string `json:"type"`
	LocationID    string `json:"location_id"`
	ProductID     string `json:"product_id"`
	BatchID       string `json:"batch_id,omitempty"`
	BatchNumber   string `json:"batch_number,omitempty"`
	OnHand        string `json:"on_hand"`
	Threshold     string `json:"threshold,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// Notifier delivers alerts to a channel (log, email, chat).
type Notifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockAlertHandler subscribes to LowStock and ExpiryAlert events.
type StockAlertHandler struct {
	logger   *zap.Logger
	notifier Notifier
}

// NewStockAlertHandler creates a handler that logs alerts; set a notifier with WithNotifier
func NewStockAlertHandler(logger *zap.Logger) *StockAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockAlertHandler{logger: logger}
}

// WithNotifier sets the notifier alerts are sent through.
func (h *StockAlertHandler) WithNotifier(n Notifier) *StockAlertHandler {
	h.notifier = n
	return h
}

// EventTypes implements shared.EventHandler
func (h *StockAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeLowStock, inventory.EventTypeExpiryAlert}
}

// Handle converts the event and sends it. Notifier failures are logged and
// swallowed so a broken channel never blocks the relay.
func (h *StockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	alert, err := toAlert(event)
	if err != nil {
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return err
	}

	h.logger.Warn("stock alert raised",
		zap.String("tenant_id", alert.TenantID),
		zap.String("type", alert.Type),
		zap.String("location_id", alert.LocationID),
		zap.String("product_id", alert.ProductID),
		zap.String("on_hand", alert.OnHand),
	)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("failed to send stock alert",
			zap.String("type", alert.Type),
			zap.String("product_id", alert.ProductID),
			zap.Error(err),
		)
	}
	return nil
}

func toAlert(event shared.DomainEvent) (StockAlert, error) {
	switch e := event.(type) {
	case *inventory.LowStockEvent:
		a := StockAlert{
			TenantID:   e.TenantID().String(),
			Type:       TypeLowStock,
			LocationID: e.LocationID.String(),
			ProductID:  e.ProductID.String(),
			OnHand:     e.OnHand.String(),
			Threshold:  e.Threshold.String(),
		}
		if e.BatchID != nil {
			a.BatchID = e.BatchID.String()
		}
		if !e.OnHand.IsPositive() {
			a.Type = TypeOutOfStock
		}
		return a, nil
	case *inventory.ExpiryAlertEvent:
		a := StockAlert{
			TenantID:      e.TenantID().String(),
			Type:          TypeExpiring,
			LocationID:    e.LocationID.String(),
			ProductID:     e.ProductID.String(),
			BatchID:       e.BatchID.String(),
			BatchNumber:   e.BatchNumber,
			OnHand:        e.OnHand.String(),
			DaysRemaining: e.DaysRemaining,
		}
		if e.DaysRemaining < 0 {
			a.Type = TypeExpired
		}
		return a, nil
	default:
		return StockAlert{}, fmt.Errorf("unexpected event type: %s", event.EventType())
	}
}

var _ shared.EventHandler = (*StockAlertHandler)(nil)

// LoggingNotifier writes alerts to the log.
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a notifier that writes alerts to logger
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// SendAlert implements Notifier
func (n *LoggingNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.Type),
		zap.String("product_id", alert.ProductID),
		zap.String("location_id", alert.LocationID),
		zap.String("batch_number", alert.BatchNumber),
		zap.String("on_hand", alert.OnHand),
		zap.Int("days_remaining", alert.DaysRemaining),
	)
	return nil
}

var _ Notifier = (*LoggingNotifier)(nil)
