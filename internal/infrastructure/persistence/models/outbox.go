package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxEntryModel is a domain event written in the same transaction as the
// state change that raised it.
type OutboxEntryModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string              `gorm:"type:varchar(255);not null"`
	AggregateID   uuid.UUID           `gorm:"type:uuid;not null"`
	AggregateType string              `gorm:"type:varchar(100);not null"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_outbox_status_created,priority:1"`
	Attempts      int                 `gorm:"not null;default:0"`
	MaxAttempts   int                 `gorm:"not null;default:5"`
	LastError     string              `gorm:"type:text"`
	NextAttemptAt *time.Time          `gorm:"index"`
	SentAt        *time.Time
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_status_created,priority:2"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OutboxEntryModel) TableName() string {
	return "outbox_events"
}

// ToDomain converts the row to a domain OutboxEntry.
func (m *OutboxEntryModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		Payload:       m.Payload,
		Status:        m.Status,
		Attempts:      m.Attempts,
		MaxAttempts:   m.MaxAttempts,
		LastError:     m.LastError,
		NextAttemptAt: m.NextAttemptAt,
		SentAt:        m.SentAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// OutboxEntryModelFromDomain converts a domain OutboxEntry.
func OutboxEntryModelFromDomain(e *shared.OutboxEntry) *OutboxEntryModel {
	return &OutboxEntryModel{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Payload:       e.Payload,
		Status:        e.Status,
		Attempts:      e.Attempts,
		MaxAttempts:   e.MaxAttempts,
		LastError:     e.LastError,
		NextAttemptAt: e.NextAttemptAt,
		SentAt:        e.SentAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// All returns every model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&StockMovementModel{},
		&StockBalanceModel{},
		&BatchModel{},
		&TransferModel{},
		&TransferItemModel{},
		&ShopOrderModel{},
		&ShopOrderItemModel{},
		&ReturnRequestModel{},
		&ReturnItemModel{},
		&DisputeModel{},
		&DisputeMessageModel{},
		&SaleModel{},
		&SaleItemModel{},
		&SalePaymentModel{},
		&RefundModel{},
		&RefundItemModel{},
		&CreditAccountModel{},
		&CreditTransactionModel{},
		&CashUpReportModel{},
		&RemittanceModel{},
		&TenantSettingsModel{},
		&LocationSettingsModel{},
		&MarginRuleModel{},
		&ShopCostModel{},
		&OutboxEntryModel{},
	}
}
