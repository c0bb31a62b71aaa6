package models

import (
	"time"

	"github.com/erp/retailops/internal/domain/cash"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenderColumns stores cash.Tenders under a column prefix.
type TenderColumns struct {
	Cash   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Card   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Mobile decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

func tenderColumns(t cash.Tenders) TenderColumns {
	return TenderColumns{Cash: t.Cash, Card: t.Card, Mobile: t.Mobile}
}

func (c TenderColumns) tenders() cash.Tenders {
	return cash.Tenders{Cash: c.Cash, Card: c.Card, Mobile: c.Mobile}
}

// CashUpReportModel is the persistence model for an end-of-period cash-up.
type CashUpReportModel struct {
	TenantAggregateModel
	ReportNumber        string        `gorm:"type:varchar(50);not null;uniqueIndex"`
	ShopID              uuid.UUID     `gorm:"type:uuid;not null;index"`
	PeriodStart         time.Time     `gorm:"not null"`
	PeriodEnd           time.Time     `gorm:"not null"`
	Expected            TenderColumns `gorm:"embedded;embeddedPrefix:expected_"`
	Actual              TenderColumns `gorm:"embedded;embeddedPrefix:actual_"`
	Variance            TenderColumns `gorm:"embedded;embeddedPrefix:variance_"`
	Status              string        `gorm:"type:varchar(20);not null;index"`
	Notes               string        `gorm:"type:text"`
	VarianceExplanation string        `gorm:"type:text"`
	SubmittedBy         *uuid.UUID    `gorm:"type:uuid"`
	SubmittedAt         *time.Time
	ApprovedBy          *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt          *time.Time
}

// TableName returns the table name for GORM
func (CashUpReportModel) TableName() string {
	return "cash_up_reports"
}

// CashUpReportModelFromDomain converts a domain cash-up report.
func CashUpReportModelFromDomain(r *cash.CashUpReport) *CashUpReportModel {
	m := &CashUpReportModel{
		ReportNumber:        r.ReportNumber,
		ShopID:              r.ShopID,
		PeriodStart:         r.PeriodStart,
		PeriodEnd:           r.PeriodEnd,
		Expected:            tenderColumns(r.Expected),
		Actual:              tenderColumns(r.Actual),
		Variance:            tenderColumns(r.Variance),
		Status:              string(r.Status()),
		Notes:               r.Notes,
		VarianceExplanation: r.VarianceExplanation,
		SubmittedBy:         r.SubmittedBy,
		SubmittedAt:         r.SubmittedAt,
		ApprovedBy:          r.ApprovedBy,
		ApprovedAt:          r.ApprovedAt,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a domain cash-up report.
func (m *CashUpReportModel) ToDomain() *cash.CashUpReport {
	return &cash.CashUpReport{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		ReportNumber:        m.ReportNumber,
		ShopID:              m.ShopID,
		PeriodStart:         m.PeriodStart,
		PeriodEnd:           m.PeriodEnd,
		Expected:            m.Expected.tenders(),
		Actual:              m.Actual.tenders(),
		Variance:            m.Variance.tenders(),
		State:               fsm.Restore(cash.CashUpStatus(m.Status)),
		Notes:               m.Notes,
		VarianceExplanation: m.VarianceExplanation,
		SubmittedBy:         m.SubmittedBy,
		SubmittedAt:         m.SubmittedAt,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
	}
}

// RemittanceModel is the persistence model for a shop-to-office remittance.
type RemittanceModel struct {
	TenantAggregateModel
	RemittanceNumber    string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	ShopID              uuid.UUID        `gorm:"type:uuid;not null;index"`
	CashUpReportID      *uuid.UUID       `gorm:"type:uuid;index"`
	Amount              decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	ExpectedAmount      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Variance            decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	RemittanceDate      time.Time        `gorm:"not null"`
	Method              string           `gorm:"type:varchar(20);not null"`
	PaymentReference    string           `gorm:"type:varchar(100)"`
	Status              string           `gorm:"type:varchar(20);not null;index"`
	Notes               string           `gorm:"type:text"`
	VarianceExplanation string           `gorm:"type:text"`
	ApprovedBy          *uuid.UUID       `gorm:"type:uuid"`
	ApprovedAt          *time.Time
	ReceivedBy          *uuid.UUID `gorm:"type:uuid"`
	ReceivedAt          *time.Time
}

// TableName returns the table name for GORM
func (RemittanceModel) TableName() string {
	return "remittances"
}

// RemittanceModelFromDomain converts a domain remittance.
func RemittanceModelFromDomain(r *cash.Remittance) *RemittanceModel {
	m := &RemittanceModel{
		RemittanceNumber:    r.RemittanceNumber,
		ShopID:              r.ShopID,
		CashUpReportID:      r.CashUpReportID,
		Amount:              r.Amount,
		ExpectedAmount:      r.ExpectedAmount,
		Variance:            r.Variance,
		RemittanceDate:      r.RemittanceDate,
		Method:              string(r.Method),
		PaymentReference:    r.PaymentReference,
		Status:              string(r.Status()),
		Notes:               r.Notes,
		VarianceExplanation: r.VarianceExplanation,
		ApprovedBy:          r.ApprovedBy,
		ApprovedAt:          r.ApprovedAt,
		ReceivedBy:          r.ReceivedBy,
		ReceivedAt:          r.ReceivedAt,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a domain remittance.
func (m *RemittanceModel) ToDomain() *cash.Remittance {
	return &cash.Remittance{
		TenantAggregateRoot: m.TenantAggregateRoot(),
		RemittanceNumber:    m.RemittanceNumber,
		ShopID:              m.ShopID,
		CashUpReportID:      m.CashUpReportID,
		Amount:              m.Amount,
		ExpectedAmount:      m.ExpectedAmount,
		Variance:            m.Variance,
		RemittanceDate:      m.RemittanceDate,
		Method:              cash.RemittanceMethod(m.Method),
		PaymentReference:    m.PaymentReference,
		State:               fsm.Restore(cash.RemittanceStatus(m.Status)),
		Notes:               m.Notes,
		VarianceExplanation: m.VarianceExplanation,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		ReceivedBy:          m.ReceivedBy,
		ReceivedAt:          m.ReceivedAt,
	}
}
