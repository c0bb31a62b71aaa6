package sales

import (
	"time"

	"github.com/erp/retailops/internal/domain/policy"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/domain/shared/fsm"
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditStatus is the state of a credit account.
type CreditStatus string

const (
	CreditActive     CreditStatus = "active"
	CreditOverLimit  CreditStatus = "over_limit"
	CreditDelinquent CreditStatus = "delinquent"
	CreditSuspended  CreditStatus = "suspended"
)

var creditMachine = fsm.New("credit account",
	fsm.Transition[CreditStatus]{Name: "mark_over_limit", From: fsm.Any[CreditStatus](), To: CreditOverLimit},
	fsm.Transition[CreditStatus]{Name: "mark_delinquent", From: fsm.Any[CreditStatus](), To: CreditDelinquent},
	fsm.Transition[CreditStatus]{Name: "suspend", From: fsm.Any[CreditStatus](), To: CreditSuspended},
	fsm.Transition[CreditStatus]{Name: "activate", From: fsm.From(CreditOverLimit, CreditDelinquent, CreditSuspended), To: CreditActive},
)

// CreditTxKind classifies a credit transaction.
type CreditTxKind string

const (
	CreditTxSale       CreditTxKind = "sale"
	CreditTxPayment    CreditTxKind = "payment"
	CreditTxAdjustment CreditTxKind = "adjustment"
)

// CreditTransaction is one immutable entry of a credit account's ledger.
type CreditTransaction struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	AccountID    uuid.UUID
	Kind         CreditTxKind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Reference    shared.Reference
	Notes        string
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
}

// CreditAccount lets one customer buy on account up to a limit.
type CreditAccount struct {
	shared.TenantAggregateRoot
	CustomerID       uuid.UUID
	CreditLimit      decimal.Decimal
	Balance          decimal.Decimal
	PaymentTermsDays int
	State            fsm.Status[CreditStatus]
	// pending holds transactions appended since the account was loaded.
	pending []CreditTransaction
}

// NewCreditAccount opens an active account with a zero balance.
func NewCreditAccount(tenantID, customerID, createdBy uuid.UUID, limit decimal.Decimal, termsDays int) (*CreditAccount, error) {
	if customerID == uuid.Nil {
		return nil, shared.InvalidInput("credit account requires a customer")
	}
	if err := valueobject.ValidateAmount(limit); err != nil {
		return nil, shared.InvalidInput("credit limit: %s", err.Error())
	}
	if termsDays <= 0 {
		termsDays = 30
	}
	return &CreditAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, createdBy),
		CustomerID:          customerID,
		CreditLimit:         limit,
		PaymentTermsDays:    termsDays,
		State:               fsm.Initial(CreditActive),
	}, nil
}

// Status returns the current state.
func (a *CreditAccount) Status() CreditStatus {
	return a.State.Get()
}

// AvailableCredit is limit minus balance, floored at zero.
func (a *CreditAccount) AvailableCredit() decimal.Decimal {
	return valueobject.NonNegative(a.CreditLimit.Sub(a.Balance))
}

// Position returns the inputs of the credit-limit policy.
func (a *CreditAccount) Position() policy.CreditPosition {
	return policy.CreditPosition{
		Balance:     a.Balance,
		CreditLimit: a.CreditLimit,
		Suspended:   a.Status() == CreditSuspended,
	}
}

// Charge puts amount on the account after evaluating the credit-limit
// policy. A block verdict is returned as an error; a warn verdict moves the
// account to over_limit and is returned to the caller.
func (a *CreditAccount) Charge(amount decimal.Decimal, ref shared.Reference, actorID uuid.UUID, at time.Time) (policy.Verdict, error) {
	if !amount.IsPositive() {
		return policy.Verdict{}, shared.InvalidInput("charge amount must be positive")
	}
	v := policy.EvaluateCredit(a.Position(), amount)
	if err := v.Err(); err != nil {
		return v, err
	}
	if v.IsWarning() {
		if err := creditMachine.Fire(&a.State, "mark_over_limit", nil); err != nil {
			return v, err
		}
		a.AddDomainEvent(NewCreditLimitExceededEvent(a, amount))
	}
	a.post(CreditTxSale, amount, ref, actorID, "", at)
	return v, nil
}

// RecordPayment reduces the balance. An over-limit account that is paid back
// within its limit becomes active again.
func (a *CreditAccount) RecordPayment(amount decimal.Decimal, actorID uuid.UUID, notes string, at time.Time) error {
	if !amount.IsPositive() {
		return shared.InvalidInput("payment amount must be positive")
	}
	if err := valueobject.ValidateAmount(amount); err != nil {
		return shared.InvalidInput("%s", err.Error())
	}
	a.post(CreditTxPayment, amount.Neg(), shared.Reference{}, actorID, notes, at)
	if a.Status() == CreditOverLimit && !a.Balance.GreaterThan(a.CreditLimit) {
		return creditMachine.Fire(&a.State, "activate", nil)
	}
	return nil
}

// Reverse posts an adjustment undoing a charge, for example when a sale is
// voided.
func (a *CreditAccount) Reverse(amount decimal.Decimal, ref shared.Reference, actorID uuid.UUID, notes string, at time.Time) {
	a.post(CreditTxAdjustment, amount.Neg(), ref, actorID, notes, at)
}

// Suspend blocks further charges over the limit.
func (a *CreditAccount) Suspend() error {
	return creditMachine.Fire(&a.State, "suspend", func(CreditStatus) error {
		a.MarkChanged()
		return nil
	})
}

// MarkDelinquent flags overdue payment.
func (a *CreditAccount) MarkDelinquent() error {
	return creditMachine.Fire(&a.State, "mark_delinquent", func(CreditStatus) error {
		a.MarkChanged()
		return nil
	})
}

// Activate returns the account to active.
func (a *CreditAccount) Activate() error {
	return creditMachine.Fire(&a.State, "activate", func(CreditStatus) error {
		a.MarkChanged()
		return nil
	})
}

// PendingTransactions returns transactions not yet persisted.
func (a *CreditAccount) PendingTransactions() []CreditTransaction {
	return a.pending
}

// ClearPendingTransactions is called by the repository after saving.
func (a *CreditAccount) ClearPendingTransactions() {
	a.pending = nil
}

func (a *CreditAccount) post(kind CreditTxKind, amount decimal.Decimal, ref shared.Reference, actorID uuid.UUID, notes string, at time.Time) {
	a.Balance = a.Balance.Add(amount)
	a.pending = append(a.pending, CreditTransaction{
		ID:           uuid.New(),
		TenantID:     a.TenantID,
		AccountID:    a.ID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: a.Balance,
		Reference:    ref,
		Notes:        notes,
		CreatedBy:    actorID,
		CreatedAt:    at,
	})
	a.MarkChanged()
}
