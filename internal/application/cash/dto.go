package cash

import (
	"time"

	"github.com/erp/retailops/internal/domain/cash"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCashUpRequest opens a cash-up report for a shop and period.
type CreateCashUpRequest struct {
	TenantID    uuid.UUID `json:"tenant_id" validate:"required"`
	ShopID      uuid.UUID `json:"shop_id" validate:"required"`
	PeriodStart time.Time `json:"period_start" validate:"required"`
	PeriodEnd   time.Time `json:"period_end" validate:"required,gtfield=PeriodStart"`
	Notes       string    `json:"notes" validate:"max=1000"`
}

// SubmitCashUpRequest records the counted tenders.
type SubmitCashUpRequest struct {
	TenantID            uuid.UUID    `json:"tenant_id" validate:"required"`
	ReportID            uuid.UUID    `json:"report_id" validate:"required"`
	Actual              cash.Tenders `json:"actual"`
	VarianceExplanation string       `json:"variance_explanation" validate:"max=1000"`
}

// SubmitRemittanceRequest records money sent to head office.
type SubmitRemittanceRequest struct {
	TenantID       uuid.UUID             `json:"tenant_id" validate:"required"`
	ShopID         uuid.UUID             `json:"shop_id" validate:"required"`
	CashUpReportID *uuid.UUID            `json:"cash_up_report_id"`
	Amount         decimal.Decimal       `json:"amount"`
	ExpectedAmount *decimal.Decimal      `json:"expected_amount"`
	RemittanceDate time.Time             `json:"remittance_date"`
	Method         cash.RemittanceMethod `json:"method" validate:"omitempty,oneof=cash bank_transfer mobile_money cheque"`
	Reference      string                `json:"payment_reference" validate:"max=100"`
	Notes          string                `json:"notes" validate:"max=1000"`
}

// ApproveRemittanceRequest accepts a remittance.
type ApproveRemittanceRequest struct {
	TenantID            uuid.UUID `json:"tenant_id" validate:"required"`
	RemittanceID        uuid.UUID `json:"remittance_id" validate:"required"`
	VarianceExplanation string    `json:"variance_explanation" validate:"max=1000"`
}
