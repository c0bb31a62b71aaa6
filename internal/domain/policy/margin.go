package policy

import (
	"fmt"

	"github.com/erp/retailops/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleMatcher selects a margin rule from candidates. Matchers are tried in
// order until one returns a rule.
type RuleMatcher interface {
	Match(rules []MarginRule, shopID, productID uuid.UUID) *MarginRule
}

// ProductShopMatcher matches a rule bound to both the shop and the product.
type ProductShopMatcher struct{}

func (ProductShopMatcher) Match(rules []MarginRule, shopID, productID uuid.UUID) *MarginRule {
	for i := range rules {
		r := &rules[i]
		if r.Active && r.ShopID != nil && *r.ShopID == shopID &&
			r.ProductID != nil && *r.ProductID == productID {
			return r
		}
	}
	return nil
}

// ShopWideMatcher matches a shop rule without a product.
type ShopWideMatcher struct{}

func (ShopWideMatcher) Match(rules []MarginRule, shopID, _ uuid.UUID) *MarginRule {
	for i := range rules {
		r := &rules[i]
		if r.Active && r.ShopID != nil && *r.ShopID == shopID && r.ProductID == nil {
			return r
		}
	}
	return nil
}

// DefaultMatchers is the rule precedence: product at shop, then shop-wide.
var DefaultMatchers = []RuleMatcher{ProductShopMatcher{}, ShopWideMatcher{}}

// SelectRule returns the first rule matched by the chain, or nil.
func SelectRule(matchers []RuleMatcher, rules []MarginRule, shopID, productID uuid.UUID) *MarginRule {
	for _, m := range matchers {
		if r := m.Match(rules, shopID, productID); r != nil {
			return r
		}
	}
	return nil
}

// MarginInput is one sale line to check.
type MarginInput struct {
	ShopID    uuid.UUID
	ProductID uuid.UUID
	UnitPrice decimal.Decimal
	// Cost is the resolved unit cost; nil means no cost data.
	Cost *decimal.Decimal
}

// EvaluateMargin checks a line against the selected rule. Lines without cost
// data, or without a rule, pass. A margin below the rule minimum applies the
// rule's behavior (falling back to fallback); a margin between minimum and
// the warning threshold produces a warning.
func EvaluateMargin(settings TenantSettings, rule *MarginRule, in MarginInput) Verdict {
	if !settings.RequireMarginCheck || rule == nil || in.Cost == nil {
		return allowed(Margin)
	}
	margin, ok := valueobject.MarginPercent(in.UnitPrice, *in.Cost)
	if !ok {
		return allowed(Margin)
	}

	data := map[string]string{
		"product_id":     in.ProductID.String(),
		"price":          in.UnitPrice.String(),
		"cost":           in.Cost.String(),
		"margin_percent": margin.String(),
		"minimum":        rule.MinimumMarginPercent.String(),
	}
	if margin.LessThan(rule.MinimumMarginPercent) {
		msg := fmt.Sprintf("margin %s%% is below the minimum %s%%", margin, rule.MinimumMarginPercent)
		return breached(Margin, rule.Behavior.Or(settings.MarginCheckBehavior.Or(Warn)), msg, data)
	}
	if rule.WarningMarginPercent != nil && margin.LessThan(*rule.WarningMarginPercent) {
		data["warning"] = rule.WarningMarginPercent.String()
		msg := fmt.Sprintf("margin %s%% is below the warning level %s%%", margin, *rule.WarningMarginPercent)
		return breached(Margin, Warn, msg, data)
	}
	return Verdict{Policy: Margin, Outcome: Allow, Data: data}
}
