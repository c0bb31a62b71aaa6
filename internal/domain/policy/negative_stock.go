package policy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ResolveNegativeStock picks the effective behavior: the location override
// when present, otherwise the tenant default, otherwise block.
func ResolveNegativeStock(tenant TenantSettings, location LocationSettings) Behavior {
	if location.NegativeStockBehavior != nil && location.NegativeStockBehavior.IsValid() {
		return *location.NegativeStockBehavior
	}
	return tenant.NegativeStockBehavior.Or(Block)
}

// EvaluateNegativeStock checks whether removing requested units from onHand
// is allowed. Drops that keep on-hand at or above zero always pass.
func EvaluateNegativeStock(behavior Behavior, onHand, requested decimal.Decimal) Verdict {
	resulting := onHand.Sub(requested)
	if !resulting.IsNegative() {
		return allowed(NegativeStock)
	}
	msg := fmt.Sprintf("stock would drop to %s (on hand %s, requested %s)", resulting, onHand, requested)
	return breached(NegativeStock, behavior.Or(Block), msg, map[string]string{
		"on_hand":   onHand.String(),
		"requested": requested.String(),
		"resulting": resulting.String(),
	})
}
