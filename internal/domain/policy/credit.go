package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CreditPosition is the state of a credit account at evaluation time.
type CreditPosition struct {
	Balance     decimal.Decimal
	CreditLimit decimal.Decimal
	Suspended   bool
}

// EvaluateCredit checks whether charging amount keeps the account within its
// limit. Over the limit a suspended account is blocked; any other account
// passes with a warning and the caller marks it over limit.
func EvaluateCredit(pos CreditPosition, amount decimal.Decimal) Verdict {
	next := pos.Balance.Add(amount)
	if !next.GreaterThan(pos.CreditLimit) {
		return allowed(CreditLimit)
	}
	data := map[string]string{
		"balance":      pos.Balance.String(),
		"amount":       amount.String(),
		"new_balance":  next.String(),
		"credit_limit": pos.CreditLimit.String(),
	}
	msg := fmt.Sprintf("new balance %s exceeds credit limit %s", next, pos.CreditLimit)
	if pos.Suspended {
		return breached(CreditLimit, Block, "suspended account: "+msg, data)
	}
	return breached(CreditLimit, Warn, msg, data)
}
