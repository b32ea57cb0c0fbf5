package coupon

import "github.com/xenking/kart-pricing/internal/domain/promotion"

// RecordLookup finds the discount record written by a rule action.
type RecordLookup interface {
	DiscountRecord(ruleID, actionID int64) (promotion.DiscountRecord, bool)
}

// UseCount returns how many coupon uses applying rule to cart consumed: the
// largest CouponUsesRequired over the rule's actions. An action without a
// record counts as one use.
func UseCount(rule *Rule, records RecordLookup, cart promotion.CartView) int {
	var uses int
	for _, action := range rule.Actions {
		required := 1
		if r, ok := records.DiscountRecord(rule.ID, action.ID); ok {
			required = r.CouponUsesRequired(action, cart)
		}
		uses = max(uses, required)
	}
	return uses
}
