package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferModel is the persistence model for the Transfer aggregate root.
type TransferModel struct {
	TenantAggregateModel
	TransferNumber string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	FromLocationID uuid.UUID  `gorm:"type:uuid;not null"`
	ToLocationID   uuid.UUID  `gorm:"type:uuid;not null"`
	ShopOrderID    *uuid.UUID `gorm:"type:uuid;index"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	Notes          string     `gorm:"type:text"`
	SentBy         *uuid.UUID `gorm:"type:uuid"`
	SentAt         *time.Time
	ReceivedBy     *uuid.UUID `gorm:"type:uuid"`
	ReceivedAt     *time.Time
	ClosedAt       *time.Time
	Items          []TransferItemModel `gorm:"foreignKey:TransferID;references:ID"`
}

// TableName returns the table name for GORM
func (TransferModel) TableName() string {
	return "transfers"
}

// TransferItemModel is one transfer line.
type TransferItemModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Position         int              `gorm:"not null;default:0"`
	TransferID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID        `gorm:"type:uuid;not null"`
	BatchID          *uuid.UUID       `gorm:"type:uuid"`
	QuantityOrdered  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	QuantityReceived decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	UnitCost         *decimal.Decimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (TransferItemModel) TableName() string {
	return "transfer_items"
}

// TransferModelFromDomain converts a domain transfer.
func TransferModelFromDomain(t *transfer.Transfer) *TransferModel {
	m := &TransferModel{
		TransferNumber: t.TransferNumber,
		FromLocationID: t.FromLocationID,
		ToLocationID:   t.ToLocationID,
		ShopOrderID:    t.ShopOrderID,
		Status:         string(t.Status()),
		Notes:          t.Notes,
		SentBy:         t.SentBy,
		SentAt:         t.SentAt,
		ReceivedBy:     t.ReceivedBy,
		ReceivedAt:     t.ReceivedAt,
		ClosedAt:       t.ClosedAt,
		Items:          make([]TransferItemModel, len(t.Items)),
	}
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	for i, it := range t.Items {
		m.Items[i] = TransferItemModel{
			ID:               it.ID,
			Position:         i,
			TransferID:       t.ID,
			ProductID:        it.ProductID,
			BatchID:          it.BatchID,
			QuantityOrdered:  it.QuantityOrdered,
			QuantityReceived: it.QuantityReceived,
			UnitCost:         it.UnitCost,
		}
	}
	return m
}

// ToDomain converts the row and its items to a domain transfer.
func (m *TransferModel) ToDomain() *transfer.Transfer {
	t := &transfer.Transfer{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		TransferNumber:      m.TransferNumber,
		FromLocationID:      m.FromLocationID,
		ToLocationID:        m.ToLocationID,
		ShopOrderID:         m.ShopOrderID,
		State:               fsm.Restore(transfer.Status(m.Status)),
		Notes:               m.Notes,
		SentBy:              m.SentBy,
		SentAt:              m.SentAt,
		ReceivedBy:          m.ReceivedBy,
		ReceivedAt:          m.ReceivedAt,
		ClosedAt:            m.ClosedAt,
		Items:               make([]transfer.Item, len(m.Items)),
	}
	for i, it := range m.Items {
		t.Items[i] = transfer.Item{
			ID:               it.ID,
			TransferID:       it.TransferID,
			ProductID:        it.ProductID,
			BatchID:          it.BatchID,
			QuantityOrdered:  it.QuantityOrdered,
			QuantityReceived: it.QuantityReceived,
			UnitCost:         it.UnitCost,
		}
	}
	return t
}

// ShopOrderModel is the persistence model for the ShopOrder aggregate root.
// The ids of synthesized transfers are read back from transfers.shop_order_id.
type ShopOrderModel struct {
	TenantAggregateModel
	OrderNumber string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	ShopID      uuid.UUID `gorm:"type:uuid;not null;index"`
	StoreID     uuid.UUID `gorm:"type:uuid;not null"`
	Status      string    `gorm:"type:varchar(30);not null;index"`
	Notes       string    `gorm:"type:text"`
	SubmittedAt *time.Time
	ApprovedBy  *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt  *time.Time
	FulfilledAt *time.Time
	Items       []ShopOrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (ShopOrderModel) TableName() string {
	return "shop_orders"
}

// ShopOrderItemModel is one requested line.
type ShopOrderItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Position          int             `gorm:"not null;default:0"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID           *uuid.UUID      `gorm:"type:uuid"`
	QuantityOrdered   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityFulfilled decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ShopOrderItemModel) TableName() string {
	return "shop_order_items"
}

// ShopOrderModelFromDomain converts a domain shop order.
func ShopOrderModelFromDomain(o *transfer.ShopOrder) *ShopOrderModel {
	m := &ShopOrderModel{
		OrderNumber: o.OrderNumber,
		ShopID:      o.ShopID,
		StoreID:     o.StoreID,
		Status:      string(o.Status()),
		Notes:       o.Notes,
		SubmittedAt: o.SubmittedAt,
		ApprovedBy:  o.ApprovedBy,
		ApprovedAt:  o.ApprovedAt,
		FulfilledAt: o.FulfilledAt,
		Items:       make([]ShopOrderItemModel, len(o.Items)),
	}
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	for i, it := range o.Items {
		m.Items[i] = ShopOrderItemModel{
			ID:                it.ID,
			Position:          i,
			OrderID:           o.ID,
			ProductID:         it.ProductID,
			BatchID:           it.BatchID,
			QuantityOrdered:   it.QuantityOrdered,
			QuantityFulfilled: it.QuantityFulfilled,
		}
	}
	return m
}

// ToDomain converts the row and its items to a domain shop order.
func (m *ShopOrderModel) ToDomain(transferIDs []uuid.UUID) *transfer.ShopOrder {
	o := &transfer.ShopOrder{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		OrderNumber:         m.OrderNumber,
		ShopID:              m.ShopID,
		StoreID:             m.StoreID,
		State:               fsm.Restore(transfer.OrderStatus(m.Status)),
		Notes:               m.Notes,
		SubmittedAt:         m.SubmittedAt,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		FulfilledAt:         m.FulfilledAt,
		TransferIDs:         transferIDs,
		Items:               make([]transfer.OrderItem, len(m.Items)),
	}
	for i, it := range m.Items {
		o.Items[i] = transfer.OrderItem{
			ID:                it.ID,
			OrderID:           it.OrderID,
			ProductID:         it.ProductID,
			BatchID:           it.BatchID,
			QuantityOrdered:   it.QuantityOrdered,
			QuantityFulfilled: it.QuantityFulfilled,
		}
	}
	return o
}

// ReturnRequestModel is the persistence model for the ReturnRequest aggregate root.
type ReturnRequestModel struct {
	TenantAggregateModel
	ReturnNumber string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	ShopID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	StoreID      uuid.UUID  `gorm:"type:uuid;not null"`
	Status       string     `gorm:"type:varchar(30);not null;index"`
	Notes        string     `gorm:"type:text"`
	ApprovedBy   *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt   *time.Time
	Items        []ReturnItemModel `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (ReturnRequestModel) TableName() string {
	return "return_requests"
}

// ReturnItemModel is one returned line.
type ReturnItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Position          int             `gorm:"not null;default:0"`
	ReturnID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID           *uuid.UUID      `gorm:"type:uuid"`
	QuantityRequested decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityApproved  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Reason            string          `gorm:"type:varchar(255)"`
	Condition         string          `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (ReturnItemModel) TableName() string {
	return "return_request_items"
}

// ReturnRequestModelFromDomain converts a domain return request.
func ReturnRequestModelFromDomain(r *transfer.ReturnRequest) *ReturnRequestModel {
	m := &ReturnRequestModel{
		ReturnNumber: r.ReturnNumber,
		ShopID:       r.ShopID,
		StoreID:      r.StoreID,
		Status:       string(r.Status()),
		Notes:        r.Notes,
		ApprovedBy:   r.ApprovedBy,
		ApprovedAt:   r.ApprovedAt,
		Items:        make([]ReturnItemModel, len(r.Items)),
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	for i, it := range r.Items {
		m.Items[i] = ReturnItemModel{
			ID:                it.ID,
			Position:          i,
			ReturnID:          r.ID,
			ProductID:         it.ProductID,
			BatchID:           it.BatchID,
			QuantityRequested: it.QuantityRequested,
			QuantityApproved:  it.QuantityApproved,
			Reason:            it.Reason,
			Condition:         string(it.Condition),
		}
	}
	return m
}

// ToDomain converts the row and its items to a domain return request.
func (m *ReturnRequestModel) ToDomain() *transfer.ReturnRequest {
	r := &transfer.ReturnRequest{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		ReturnNumber:        m.ReturnNumber,
		ShopID:              m.ShopID,
		StoreID:             m.StoreID,
		State:               fsm.Restore(transfer.ReturnStatus(m.Status)),
		Notes:               m.Notes,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		Items:               make([]transfer.ReturnItem, len(m.Items)),
	}
	for i, it := range m.Items {
		r.Items[i] = transfer.ReturnItem{
			ID:                it.ID,
			ReturnID:          it.ReturnID,
			ProductID:         it.ProductID,
			BatchID:           it.BatchID,
			QuantityRequested: it.QuantityRequested,
			QuantityApproved:  it.QuantityApproved,
			Reason:            it.Reason,
			Condition:         transfer.Condition(it.Condition),
		}
	}
	return r
}

// DisputeModel is the persistence model for the Dispute aggregate root.
type DisputeModel struct {
	TenantAggregateModel
	DisputeNumber string `gorm:"type:varchar(50);not null;uniqueIndex"`
	ReferenceColumns
	Subject    string     `gorm:"type:varchar(255);not null"`
	Resolved   bool       `gorm:"not null;default:false"`
	Resolution string     `gorm:"type:text"`
	ResolvedBy *uuid.UUID `gorm:"type:uuid"`
	ResolvedAt *time.Time
	Messages   []DisputeMessageModel `gorm:"foreignKey:DisputeID;references:ID"`
}

// TableName returns the table name for GORM
func (DisputeModel) TableName() string {
	return "disputes"
}

// DisputeMessageModel is one message of a dispute thread.
type DisputeMessageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisputeID uuid.UUID `gorm:"type:uuid;not null;index"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DisputeMessageModel) TableName() string {
	return "dispute_messages"
}

// DisputeModelFromDomain converts a domain dispute.
func DisputeModelFromDomain(d *transfer.Dispute) *DisputeModel {
	m := &DisputeModel{
		DisputeNumber:    d.DisputeNumber,
		ReferenceColumns: NewReferenceColumns(d.Reference),
		Subject:          d.Subject,
		Resolved:         d.Resolved,
		Resolution:       d.Resolution,
		ResolvedBy:       d.ResolvedBy,
		ResolvedAt:       d.ResolvedAt,
		Messages:         make([]DisputeMessageModel, len(d.Messages)),
	}
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	for i, msg := range d.Messages {
		m.Messages[i] = DisputeMessageModel{
			ID:        msg.ID,
			DisputeID: d.ID,
			AuthorID:  msg.AuthorID,
			Body:      msg.Body,
			CreatedAt: msg.CreatedAt,
		}
	}
	return m
}

// ToDomain converts the row and its messages to a domain dispute.
func (m *DisputeModel) ToDomain() *transfer.Dispute {
	d := &transfer.Dispute{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		DisputeNumber:       m.DisputeNumber,
		Reference:           m.ReferenceColumns.Reference(),
		Subject:             m.Subject,
		Resolved:            m.Resolved,
		Resolution:          m.Resolution,
		ResolvedBy:          m.ResolvedBy,
		ResolvedAt:          m.ResolvedAt,
		Messages:            make([]transfer.DisputeMessage, len(m.Messages)),
	}
	for i, msg := range m.Messages {
		d.Messages[i] = transfer.DisputeMessage{
			ID:        msg.ID,
			DisputeID: msg.DisputeID,
			AuthorID:  msg.AuthorID,
			Body:      msg.Body,
			CreatedAt: msg.CreatedAt,
		}
	}
	return d
}
