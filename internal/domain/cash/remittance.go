package cash

import (
	"time"

	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemittanceStatus is the state of a remittance.
type RemittanceStatus string

const (
	RemittanceSubmitted RemittanceStatus = "submitted"
	RemittanceApproved  RemittanceStatus = "approved"
	RemittanceDisputed  RemittanceStatus = "disputed"
	RemittanceClosed    RemittanceStatus = "closed"
)

var remittanceMachine = fsm.New("remittance",
	fsm.Transition[RemittanceStatus]{Name: "approve", From: fsm.From(RemittanceSubmitted), To: RemittanceApproved},
	fsm.Transition[RemittanceStatus]{Name: "dispute", From: fsm.Any[RemittanceStatus](), To: RemittanceDisputed},
	fsm.Transition[RemittanceStatus]{Name: "close", From: fsm.Any[RemittanceStatus](), To: RemittanceClosed},
)

// RemittanceMethod is how the money was sent.
type RemittanceMethod string

const (
	RemitCash         RemittanceMethod = "cash"
	RemitBankTransfer RemittanceMethod = "bank_transfer"
	RemitMobileMoney  RemittanceMethod = "mobile_money"
	RemitCheque       RemittanceMethod = "cheque"
)

// IsValid reports whether m is known.
func (m RemittanceMethod) IsValid() bool {
	switch m {
	case RemitCash, RemitBankTransfer, RemitMobileMoney, RemitCheque:
		return true
	}
	return false
}

// Remittance is money a shop hands over, optionally against a cash-up.
type Remittance struct {
	shared.TenantAggregateRoot
	RemittanceNumber    string
	ShopID              uuid.UUID
	CashUpReportID      *uuid.UUID
	Amount              decimal.Decimal
	ExpectedAmount      *decimal.Decimal
	Variance            decimal.Decimal
	RemittanceDate      time.Time
	Method              RemittanceMethod
	PaymentReference    string
	State               fsm.Status[RemittanceStatus]
	Notes               string
	VarianceExplanation string
	ApprovedBy          *uuid.UUID
	ApprovedAt          *time.Time
	ReceivedBy          *uuid.UUID
	ReceivedAt          *time.Time
}

// NewRemittanceParams holds the inputs of NewRemittance.
type NewRemittanceParams struct {
	TenantID         uuid.UUID
	ShopID           uuid.UUID
	SubmittedBy      uuid.UUID
	CashUpReportID   *uuid.UUID
	Amount           decimal.Decimal
	ExpectedAmount   *decimal.Decimal
	RemittanceDate   time.Time
	Method           RemittanceMethod
	PaymentReference string
	Notes            string
}

// NewRemittance creates a submitted remittance.
func NewRemittance(p NewRemittanceParams) (*Remittance, error) {
	if p.ShopID == uuid.Nil {
		return nil, shared.InvalidInput("remittance requires a shop")
	}
	if !p.Amount.IsPositive() {
		return nil, shared.InvalidInput("remitted amount must be positive")
	}
	if err := valueobject.ValidateAmount(p.Amount); err != nil {
		return nil, shared.InvalidInput("%s", err.Error())
	}
	method := p.Method
	if method == "" {
		method = RemitCash
	}
	if !method.IsValid() {
		return nil, shared.InvalidInput("unknown remittance method %q", p.Method)
	}
	r := &Remittance{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(p.TenantID, p.SubmittedBy),
		ShopID:              p.ShopID,
		CashUpReportID:      p.CashUpReportID,
		Amount:              p.Amount,
		ExpectedAmount:      p.ExpectedAmount,
		RemittanceDate:      p.RemittanceDate,
		Method:              method,
		PaymentReference:    p.PaymentReference,
		Notes:               p.Notes,
		State:               fsm.Initial(RemittanceSubmitted),
	}
	if r.RemittanceDate.IsZero() {
		r.RemittanceDate = r.CreatedAt
	}
	r.RemittanceNumber = shared.NewDocumentNumber(shared.PrefixRemittance, r.CreatedAt)
	r.AddDomainEvent(NewRemittanceSubmittedEvent(r))
	return r, nil
}

// Status returns the current state.
func (r *Remittance) Status() RemittanceStatus {
	return r.State.Get()
}

// Approve accepts the remittance and computes the variance against the
// expected amount, when one is known.
func (r *Remittance) Approve(actorID uuid.UUID, explanation string) error {
	return remittanceMachine.Fire(&r.State, "approve", func(RemittanceStatus) error {
		if r.ExpectedAmount != nil {
			r.Variance = r.Amount.Sub(*r.ExpectedAmount)
		}
		now := time.Now()
		r.ApprovedBy = &actorID
		r.ApprovedAt = &now
		r.VarianceExplanation = explanation
		r.MarkChanged()
		return nil
	})
}

// Dispute marks the remittance as disputed.
func (r *Remittance) Dispute() error {
	return remittanceMachine.Fire(&r.State, "dispute", func(RemittanceStatus) error {
		r.MarkChanged()
		return nil
	})
}

// Close marks the money as received.
func (r *Remittance) Close(actorID uuid.UUID) error {
	return remittanceMachine.Fire(&r.State, "close", func(RemittanceStatus) error {
		now := time.Now()
		r.ReceivedBy = &actorID
		r.ReceivedAt = &now
		r.MarkChanged()
		return nil
	})
}
