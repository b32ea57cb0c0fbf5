package promotion

import (
	"strings"

	"github.com/go-faster/errors"
)

// Container holds the discount records of one cart, keyed by rule and
// action, together with the limited-usage promotion codes the cart has
// invoked. It is owned by a single cart and is not safe for concurrent use.
type Container struct {
	records map[Key]DiscountRecord
	order   []Key
	// limited-usage promotion code (upper-cased) to rule id
	limitedUsage map[string]int64
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{
		records:      make(map[Key]DiscountRecord),
		limitedUsage: make(map[string]int64),
	}
}

// AddDiscountRecord stores a copy of r under its key, replacing any record of
// the same variant already stored there. Replacing a record of a different
// variant fails with ErrRecordKindMismatch and leaves the container unchanged.
func (c *Container) AddDiscountRecord(r DiscountRecord) error {
	if r == nil {
		return errors.Wrap(ErrInvalidRecord, "nil record")
	}
	if r.DiscountAmount().IsNegative() {
		return errors.Wrapf(ErrInvalidRecord, "negative amount %s", r.DiscountAmount())
	}
	key := r.Key()
	if existing, ok := c.records[key]; ok {
		if existing.Kind() != r.Kind() {
			return errors.Wrapf(ErrRecordKindMismatch,
				"rule %d action %d: stored %s, got %s", key.RuleID, key.ActionID, existing.Kind(), r.Kind())
		}
	} else {
		c.order = append(c.order, key)
	}
	c.records[key] = r.clone()
	return nil
}

// DiscountRecord returns a copy of the record stored for the rule and action.
func (c *Container) DiscountRecord(ruleID, actionID int64) (DiscountRecord, bool) {
	r, ok := c.records[Key{RuleID: ruleID, ActionID: actionID}]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Len returns the number of stored records.
func (c *Container) Len() int { return len(c.records) }

// Clear removes all records and limited-usage codes.
func (c *Container) Clear() {
	clear(c.records)
	clear(c.limitedUsage)
	c.order = c.order[:0]
}

// AllDiscountRecords returns copies of all records in insertion order. The
// returned records do not observe later mutations of the container.
func (c *Container) AllDiscountRecords() []DiscountRecord {
	out := make([]DiscountRecord, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.records[key].clone())
	}
	return out
}

// AppliedRulesByLineItem returns the ids of rules with an item record for
// the given line item, superseded or not.
func (c *Container) AppliedRulesByLineItem(itemGUID string) []int64 {
	return c.rules(func(r DiscountRecord) bool {
		item, ok := r.(*ItemDiscountRecord)
		return ok && item.itemGUID == itemGUID
	})
}

// AppliedRules returns the ids of rules with a live record. Shipping records
// count only for the cart's selected shipping option.
func (c *Container) AppliedRules(cart CartView) []int64 {
	selected := ""
	if cart != nil {
		selected = cart.SelectedShippingOption()
	}
	return c.rules(func(r DiscountRecord) bool {
		if r.Superseded() {
			return false
		}
		if ship, ok := r.(*ShippingDiscountRecord); ok {
			return selected != "" && ship.optionCode == selected
		}
		return true
	})
}

// AppliedRulesByShippingOption returns the ids of rules with a live
// shipping record for the option.
func (c *Container) AppliedRulesByShippingOption(optionCode string) []int64 {
	return c.rules(func(r DiscountRecord) bool {
		ship, ok := r.(*ShippingDiscountRecord)
		return ok && !ship.superseded && ship.optionCode == optionCode
	})
}

func (c *Container) rules(match func(DiscountRecord) bool) []int64 {
	var (
		out  []int64
		seen = make(map[int64]struct{})
	)
	for _, key := range c.order {
		r := c.records[key]
		if !match(r) {
			continue
		}
		if _, ok := seen[key.RuleID]; ok {
			continue
		}
		seen[key.RuleID] = struct{}{}
		out = append(out, key.RuleID)
	}
	return out
}

// Supersede marks the record stored under key as superseded.
func (c *Container) Supersede(key Key) error {
	r, ok := c.records[key]
	if !ok {
		return errors.Wrapf(ErrRecordNotFound, "rule %d action %d", key.RuleID, key.ActionID)
	}
	r.base().superseded = true
	return nil
}

// SupersedeWhere marks every record matching pred as superseded and returns
// how many records changed state.
func (c *Container) SupersedeWhere(pred func(DiscountRecord) bool) int {
	var n int
	for _, key := range c.order {
		r := c.records[key]
		if r.Superseded() || !pred(r) {
			continue
		}
		r.base().superseded = true
		n++
	}
	return n
}

// AccumulateQuantity widens the quantity an item record applies to.
func (c *Container) AccumulateQuantity(key Key, qty int) error {
	r, ok := c.records[key]
	if !ok {
		return errors.Wrapf(ErrRecordNotFound, "rule %d action %d", key.RuleID, key.ActionID)
	}
	item, ok := r.(*ItemDiscountRecord)
	if !ok {
		return errors.Wrapf(ErrRecordKindMismatch,
			"rule %d action %d: stored %s, got %s", key.RuleID, key.ActionID, r.Kind(), KindItem)
	}
	item.quantity += qty
	return nil
}

// AddLimitedUsagePromotionRuleCode records that code unlocked ruleID.
func (c *Container) AddLimitedUsagePromotionRuleCode(code string, ruleID int64) {
	if code == "" {
		return
	}
	c.limitedUsage[strings.ToUpper(code)] = ruleID
}

// RemoveLimitedUsagePromotionRuleCode forgets code.
func (c *Container) RemoveLimitedUsagePromotionRuleCode(code string) {
	if code == "" {
		return
	}
	delete(c.limitedUsage, strings.ToUpper(code))
}

// LimitedUsagePromotionRuleCodes returns a copy of the code to rule index.
func (c *Container) LimitedUsagePromotionRuleCodes() map[string]int64 {
	out := make(map[string]int64, len(c.limitedUsage))
	for code, id := range c.limitedUsage {
		out[code] = id
	}
	return out
}

// HasLimitedUsageRule reports whether any recorded code unlocked ruleID.
func (c *Container) HasLimitedUsageRule(ruleID int64) bool {
	for _, id := range c.limitedUsage {
		if id == ruleID {
			return true
		}
	}
	return false
}
