package cash

import (
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypeRemittance = "Remittance"

	EventTypeRemittanceSubmitted = "RemittanceSubmitted"
)

// RemittanceSubmittedEvent is raised when a shop records a remittance.
type RemittanceSubmittedEvent struct {
	shared.BaseDomainEvent
	RemittanceNumber string          `json:"remittance_number"`
	ShopID           uuid.UUID       `json:"shop_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method"`
}

// NewRemittanceSubmittedEvent creates the remittance submitted event
func NewRemittanceSubmittedEvent(r *Remittance) *RemittanceSubmittedEvent {
	return &RemittanceSubmittedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeRemittanceSubmitted, AggregateTypeRemittance, r.ID, r.TenantID),
		RemittanceNumber: r.RemittanceNumber,
		ShopID:           r.ShopID,
		Amount:           r.Amount,
		Method:           string(r.Method),
	}
}
