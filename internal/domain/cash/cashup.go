// Package cash reconciles shop takings: cash-up reports compare expected and
// counted tenders for a period, and remittances record money sent to head
// office.
package cash

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tenders splits an amount by payment channel.
type Tenders struct {
	Cash   decimal.Decimal `json:"cash"`
	Card   decimal.Decimal `json:"card"`
	Mobile decimal.Decimal `json:"mobile"`
}

// Total sums every channel.
func (t Tenders) Total() decimal.Decimal {
	return t.Cash.Add(t.Card).Add(t.Mobile)
}

// Sub returns t - o per channel.
func (t Tenders) Sub(o Tenders) Tenders {
	return Tenders{Cash: t.Cash.Sub(o.Cash), Card: t.Card.Sub(o.Card), Mobile: t.Mobile.Sub(o.Mobile)}
}

func (t Tenders) validate() error {
	for name, v := range map[string]decimal.Decimal{"cash": t.Cash, "card": t.Card, "mobile": t.Mobile} {
		if err := valueobject.ValidateAmount(v); err != nil {
			return shared.InvalidInput("%s: %s", name, err.Error())
		}
	}
	return nil
}

// CashUpStatus is the state of a cash-up report.
type CashUpStatus string

const (
	CashUpDraft     CashUpStatus = "draft"
	CashUpSubmitted CashUpStatus = "submitted"
	CashUpApproved  CashUpStatus = "approved"
	CashUpDisputed  CashUpStatus = "disputed"
	CashUpClosed    CashUpStatus = "closed"
)

var cashUpMachine = fsm.New("cash-up report",
	fsm.Transition[CashUpStatus]{Name: "submit", From: fsm.From(CashUpDraft), To: CashUpSubmitted},
	fsm.Transition[CashUpStatus]{Name: "approve", From: fsm.From(CashUpSubmitted), To: CashUpApproved},
	fsm.Transition[CashUpStatus]{Name: "dispute", From: fsm.Any[CashUpStatus](), To: CashUpDisputed},
	fsm.Transition[CashUpStatus]{Name: "close", From: fsm.Any[CashUpStatus](), To: CashUpClosed},
)

// CashUpReport is a shop's end-of-period count.
type CashUpReport struct {
	shared.TenantAggregateRoot
	ReportNumber        string
	ShopID              uuid.UUID
	PeriodStart         time.Time
	PeriodEnd           time.Time
	Expected            Tenders
	Actual              Tenders
	Variance            Tenders
	State               fsm.Status[CashUpStatus]
	Notes               string
	VarianceExplanation string
	SubmittedBy         *uuid.UUID
	SubmittedAt         *time.Time
	ApprovedBy          *uuid.UUID
	ApprovedAt          *time.Time
}

// NewCashUpReport creates a draft with the expected takings of the period.
func NewCashUpReport(tenantID, shopID, createdBy uuid.UUID, start, end time.Time, expected Tenders) (*CashUpReport, error) {
	if shopID == uuid.Nil {
		return nil, shared.InvalidInput("cash-up requires a shop")
	}
	if !end.After(start) {
		return nil, shared.InvalidInput("cash-up period end must be after start")
	}
	r := &CashUpReport{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		ShopID:              shopID,
		PeriodStart:         start,
		PeriodEnd:           end,
		Expected:            expected,
		State:               fsm.Initial(CashUpDraft),
	}
	r.ReportNumber = shared.NewDocumentNumber(shared.PrefixCashUp, r.CreatedAt)
	return r, nil
}

// Status returns the current state.
func (r *CashUpReport) Status() CashUpStatus {
	return r.State.Get()
}

// Submit records the counted amounts and computes the variance per channel.
func (r *CashUpReport) Submit(actorID uuid.UUID, actual Tenders, explanation string) error {
	if err := actual.validate(); err != nil {
		return err
	}
	return cashUpMachine.Fire(&r.State, "submit", func(CashUpStatus) error {
		now := time.Now()
		r.Actual = actual
		r.Variance = actual.Sub(r.Expected)
		r.VarianceExplanation = explanation
		r.SubmittedBy = &actorID
		r.SubmittedAt = &now
		r.MarkChanged()
		return nil
	})
}

// Approve signs off a submitted report.
func (r *CashUpReport) Approve(actorID uuid.UUID) error {
	return cashUpMachine.Fire(&r.State, "approve", func(CashUpStatus) error {
		now := time.Now()
		r.ApprovedBy = &actorID
		r.ApprovedAt = &now
		r.MarkChanged()
		return nil
	})
}

// Dispute marks the report as disputed.
func (r *CashUpReport) Dispute() error {
	return cashUpMachine.Fire(&r.State, "dispute", func(CashUpStatus) error {
		r.MarkChanged()
		return nil
	})
}

// Close closes the report.
func (r *CashUpReport) Close() error {
	return cashUpMachine.Fire(&r.State, "close", func(CashUpStatus) error {
		r.MarkChanged()
		return nil
	})
}
