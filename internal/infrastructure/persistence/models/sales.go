package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/sales"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleModel is the persistence model for the Sale aggregate root.
type SaleModel struct {
	TenantAggregateModel
	SaleNumber    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	ShopID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	CashierID     uuid.UUID       `gorm:"type:uuid;not null"`
	CustomerID    *uuid.UUID      `gorm:"type:uuid;index"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ChangeGiven   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status        string          `gorm:"type:varchar(30);not null;index"`
	Notes         string          `gorm:"type:text"`
	VoidedBy      *uuid.UUID      `gorm:"type:uuid"`
	VoidedAt      *time.Time
	VoidReason    string             `gorm:"type:varchar(500)"`
	Items         []SaleItemModel    `gorm:"foreignKey:SaleID;references:ID"`
	Payments      []SalePaymentModel `gorm:"foreignKey:SaleID;references:ID"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// SaleItemModel is one sold line.
type SaleItemModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Position         int              `gorm:"not null;default:0"`
	SaleID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID        `gorm:"type:uuid;not null"`
	BatchID          *uuid.UUID       `gorm:"type:uuid"`
	Quantity         decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	UnitPrice        decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	UnitCost         *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Discount         decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	LineTotal        decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	QuantityRefunded decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (SaleItemModel) TableName() string {
	return "sale_items"
}

// SalePaymentModel is one tender of a sale.
type SalePaymentModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Position        int             `gorm:"not null;default:0"`
	SaleID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Method          string          `gorm:"type:varchar(20);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReferenceNumber string          `gorm:"type:varchar(100)"`
	CreditAccountID *uuid.UUID      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (SalePaymentModel) TableName() string {
	return "sale_payments"
}

// SaleModelFromDomain converts a domain sale.
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{
		SaleNumber:    s.SaleNumber,
		ShopID:        s.ShopID,
		CashierID:     s.CashierID,
		CustomerID:    s.CustomerID,
		Subtotal:      s.Subtotal,
		DiscountTotal: s.DiscountTotal,
		TaxAmount:     s.TaxAmount,
		Total:         s.Total,
		ChangeGiven:   s.ChangeGiven,
		Status:        string(s.Status()),
		Notes:         s.Notes,
		VoidedBy:      s.VoidedBy,
		VoidedAt:      s.VoidedAt,
		VoidReason:    s.VoidReason,
		Items:         make([]SaleItemModel, len(s.Items)),
		Payments:      make([]SalePaymentModel, len(s.Payments)),
	}
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	for i, it := range s.Items {
		m.Items[i] = SaleItemModel{
			ID:               it.ID,
			Position:         i,
			SaleID:           s.ID,
			ProductID:        it.ProductID,
			BatchID:          it.BatchID,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			UnitCost:         it.UnitCost,
			Discount:         it.Discount,
			LineTotal:        it.LineTotal,
			QuantityRefunded: it.QuantityRefunded,
		}
	}
	for i, p := range s.Payments {
		m.Payments[i] = SalePaymentModel{
			ID:              p.ID,
			Position:        i,
			SaleID:          s.ID,
			Method:          string(p.Method),
			Amount:          p.Amount,
			ReferenceNumber: p.ReferenceNumber,
			CreditAccountID: p.CreditAccountID,
		}
	}
	return m
}

// ToDomain converts the row with its lines and tenders to a domain sale.
func (m *SaleModel) ToDomain() *sales.Sale {
	s := &sales.Sale{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		SaleNumber:          m.SaleNumber,
		ShopID:              m.ShopID,
		CashierID:           m.CashierID,
		CustomerID:          m.CustomerID,
		Subtotal:            m.Subtotal,
		DiscountTotal:       m.DiscountTotal,
		TaxAmount:           m.TaxAmount,
		Total:               m.Total,
		ChangeGiven:         m.ChangeGiven,
		State:               fsm.Restore(sales.SaleStatus(m.Status)),
		Notes:               m.Notes,
		VoidedBy:            m.VoidedBy,
		VoidedAt:            m.VoidedAt,
		VoidReason:          m.VoidReason,
		Items:               make([]sales.SaleItem, len(m.Items)),
		Payments:            make([]sales.Payment, len(m.Payments)),
	}
	for i, it := range m.Items {
		s.Items[i] = sales.SaleItem{
			ID:               it.ID,
			SaleID:           it.SaleID,
			ProductID:        it.ProductID,
			BatchID:          it.BatchID,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			UnitCost:         it.UnitCost,
			Discount:         it.Discount,
			LineTotal:        it.LineTotal,
			QuantityRefunded: it.QuantityRefunded,
		}
	}
	for i, p := range m.Payments {
		s.Payments[i] = sales.Payment{
			ID:              p.ID,
			SaleID:          p.SaleID,
			Method:          sales.PaymentMethod(p.Method),
			Amount:          p.Amount,
			ReferenceNumber: p.ReferenceNumber,
			CreditAccountID: p.CreditAccountID,
		}
	}
	return s
}

// RefundModel is the persistence model for the Refund aggregate root.
type RefundModel struct {
	TenantAggregateModel
	RefundNumber string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	SaleID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ShopID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason       string          `gorm:"type:varchar(500)"`
	Status       string          `gorm:"type:varchar(20);not null;index"`
	ApprovedBy   *uuid.UUID      `gorm:"type:uuid"`
	ApprovedAt   *time.Time
	RejectedAt   *time.Time
	CompletedBy  *uuid.UUID `gorm:"type:uuid"`
	CompletedAt  *time.Time
	Items        []RefundItemModel `gorm:"foreignKey:RefundID;references:ID"`
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// RefundItemModel is one refunded line.
type RefundItemModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Position       int             `gorm:"not null;default:0"`
	RefundID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleItemID     uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID        *uuid.UUID      `gorm:"type:uuid"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Classification string          `gorm:"type:varchar(20);not null"`
	Notes          string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (RefundItemModel) TableName() string {
	return "refund_items"
}

// RefundModelFromDomain converts a domain refund.
func RefundModelFromDomain(r *sales.Refund) *RefundModel {
	m := &RefundModel{
		RefundNumber: r.RefundNumber,
		SaleID:       r.SaleID,
		ShopID:       r.ShopID,
		Amount:       r.Amount,
		Reason:       r.Reason,
		Status:       string(r.Status()),
		ApprovedBy:   r.ApprovedBy,
		ApprovedAt:   r.ApprovedAt,
		RejectedAt:   r.RejectedAt,
		CompletedBy:  r.CompletedBy,
		CompletedAt:  r.CompletedAt,
		Items:        make([]RefundItemModel, len(r.Items)),
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	for i, it := range r.Items {
		m.Items[i] = RefundItemModel{
			ID:             it.ID,
			Position:       i,
			RefundID:       r.ID,
			SaleItemID:     it.SaleItemID,
			ProductID:      it.ProductID,
			BatchID:        it.BatchID,
			Quantity:       it.Quantity,
			Amount:         it.Amount,
			Classification: string(it.Classification),
			Notes:          it.Notes,
		}
	}
	return m
}

// ToDomain converts the row and its lines to a domain refund.
func (m *RefundModel) ToDomain() *sales.Refund {
	r := &sales.Refund{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		RefundNumber:        m.RefundNumber,
		SaleID:              m.SaleID,
		ShopID:              m.ShopID,
		Amount:              m.Amount,
		Reason:              m.Reason,
		State:               fsm.Restore(sales.RefundStatus(m.Status)),
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		RejectedAt:          m.RejectedAt,
		CompletedBy:         m.CompletedBy,
		CompletedAt:         m.CompletedAt,
		Items:               make([]sales.RefundItem, len(m.Items)),
	}
	for i, it := range m.Items {
		r.Items[i] = sales.RefundItem{
			ID:             it.ID,
			RefundID:       it.RefundID,
			SaleItemID:     it.SaleItemID,
			ProductID:      it.ProductID,
			BatchID:        it.BatchID,
			Quantity:       it.Quantity,
			Amount:         it.Amount,
			Classification: sales.Classification(it.Classification),
			Notes:          it.Notes,
		}
	}
	return r
}

// CreditAccountModel is the persistence model for a customer credit account.
type CreditAccountModel struct {
	TenantAggregateModel
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	CreditLimit      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Balance          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentTermsDays int             `gorm:"not null"`
	Status           string          `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (CreditAccountModel) TableName() string {
	return "credit_accounts"
}

// CreditAccountModelFromDomain converts a domain credit account. Pending
// transactions are persisted separately.
func CreditAccountModelFromDomain(a *sales.CreditAccount) *CreditAccountModel {
	m := &CreditAccountModel{
		CustomerID:       a.CustomerID,
		CreditLimit:      a.CreditLimit,
		Balance:          a.Balance,
		PaymentTermsDays: a.PaymentTermsDays,
		Status:           string(a.Status()),
	}
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a domain credit account.
func (m *CreditAccountModel) ToDomain() *sales.CreditAccount {
	return &sales.CreditAccount{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		CustomerID:          m.CustomerID,
		CreditLimit:         m.CreditLimit,
		Balance:             m.Balance,
		PaymentTermsDays:    m.PaymentTermsDays,
		State:               fsm.Restore(sales.CreditStatus(m.Status)),
	}
}

// CreditTransactionModel is one immutable account entry.
type CreditTransactionModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_credit_tx_account,priority:1"`
	Kind         string          `gorm:"type:varchar(20);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReferenceColumns
	Notes     string    `gorm:"type:varchar(500)"`
	CreatedBy uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time `gorm:"not null;index:idx_credit_tx_account,priority:2"`
}

// TableName returns the table name for GORM
func (CreditTransactionModel) TableName() string {
	return "credit_transactions"
}

// CreditTransactionModelFromDomain converts a domain credit transaction.
func CreditTransactionModelFromDomain(t sales.CreditTransaction) *CreditTransactionModel {
	return &CreditTransactionModel{
		ID:               t.ID,
		TenantID:         t.TenantID,
		AccountID:        t.AccountID,
		Kind:             string(t.Kind),
		Amount:           t.Amount,
		BalanceAfter:     t.BalanceAfter,
		ReferenceColumns: NewReferenceColumns(t.Reference),
		Notes:            t.Notes,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
	}
}

// ToDomain converts the row to a domain credit transaction.
func (m *CreditTransactionModel) ToDomain() sales.CreditTransaction {
	return sales.CreditTransaction{
		ID:           m.ID,
		TenantID:     m.TenantID,
		AccountID:    m.AccountID,
		Kind:         sales.CreditTxKind(m.Kind),
		Amount:       m.Amount,
		BalanceAfter: m.BalanceAfter,
		Reference:    m.ReferenceColumns.Reference(),
		Notes:        m.Notes,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}
