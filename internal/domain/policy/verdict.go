// Package policy evaluates the business rules that gate ledger writes:
// negative stock, minimum margin and credit limits. Every evaluation is a
// pure function returning a Verdict; callers decide how to act on it.
package policy

import (
	"github.com/erp/retailops/internal/domain/shared"
)

// Behavior is a configured reaction to a rule breach and also the outcome of
// an evaluation.
type Behavior string

const (
	Allow Behavior = "allow"
	Warn  Behavior = "warn"
	Block Behavior = "block"
)

// IsValid reports whether b is a known behavior.
func (b Behavior) IsValid() bool {
	return b == Allow || b == Warn || b == Block
}

// Or returns b, or fallback when b is empty or unknown.
func (b Behavior) Or(fallback Behavior) Behavior {
	if b.IsValid() {
		return b
	}
	return fallback
}

// Policy names.
const (
	NegativeStock = "negative_stock"
	Margin        = "margin"
	CreditLimit   = "credit_limit"
)

// Verdict is the result of one policy evaluation.
type Verdict struct {
	Policy  string            `json:"policy"`
	Outcome Behavior          `json:"outcome"`
	Message string            `json:"message,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

func allowed(policy string) Verdict {
	return Verdict{Policy: policy, Outcome: Allow}
}

func breached(policy string, b Behavior, msg string, data map[string]string) Verdict {
	if b == Allow {
		return Verdict{Policy: policy, Outcome: Allow, Data: data}
	}
	return Verdict{Policy: policy, Outcome: b, Message: msg, Data: data}
}

// IsBlocked reports a block outcome.
func (v Verdict) IsBlocked() bool { return v.Outcome == Block }

// IsWarning reports a warn outcome.
func (v Verdict) IsWarning() bool { return v.Outcome == Warn }

// Err converts a block verdict into a PolicyViolationError; other outcomes
// return nil.
func (v Verdict) Err() error {
	if !v.IsBlocked() {
		return nil
	}
	return &shared.PolicyViolationError{Policy: v.Policy, Message: v.Message, Data: v.Data}
}

// Advisories collects warn verdicts produced during one operation.
type Advisories []Verdict

// Add keeps v if it is a warning.
func (a *Advisories) Add(v Verdict) {
	if v.IsWarning() {
		*a = append(*a, v)
	}
}
