package inventory

import (
	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// WeightedAverage returns the moving average unit cost after receiving
// inQty units at inCost on top of oldQty units carried at oldCost:
//
//	(oldCost*oldQty + inCost*inQty) / (oldQty + inQty)
//
// With no prior cost, or no positive prior quantity, the incoming cost wins.
// Non-positive inbound quantities leave the cost untouched.
func WeightedAverage(oldCost *decimal.Decimal, oldQty, inCost, inQty decimal.Decimal) *decimal.Decimal {
	if !inQty.IsPositive() {
		return oldCost
	}
	if oldCost == nil || !oldQty.IsPositive() {
		c := valueobject.UnitCost(inCost)
		return &c
	}
	total := oldQty.Add(inQty)
	if total.IsZero() {
		return oldCost
	}
	c := valueobject.UnitCost(oldCost.Mul(oldQty).Add(inCost.Mul(inQty)).Div(total))
	return &c
}
