package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/promotion"
	"github.com/xenking/kart-pricing/internal/money"
)

// SetSubtotalDiscount applies a subtotal discount produced by a rule action.
//
// A discount smaller than the current one, the override when set, is
// recorded as superseded. A larger one is clamped to the subtotal,
// supersedes every earlier subtotal record and the override, and becomes
// the adopted discount. A discount clamped to zero is recorded as
// superseded.
//
// Exchange carts adopt the value without recording it as live.
func (c *Cart) SetSubtotalDiscount(amount decimal.Decimal, ruleID, actionID int64) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "subtotal discount %s", amount)
	}
	if existing, ok := c.promotions.DiscountRecord(ruleID, actionID); ok && existing.Kind() != promotion.KindSubtotal {
		return errors.Wrapf(promotion.ErrRecordKindMismatch,
			"rule %d action %d: stored %s", ruleID, actionID, existing.Kind())
	}

	subtotal, err := c.Subtotal()
	if err != nil {
		return errors.Wrap(err, "subtotal")
	}
	if c.subtotalDiscountWithin(subtotal.Amount).GreaterThan(amount) {
		return c.recordSupersededSubtotal(amount, ruleID, actionID)
	}

	actual := amount
	if actual.GreaterThan(subtotal.Amount) {
		actual = subtotal.Amount
		c.lg.Warn("Subtotal discount exceeds subtotal, clamping",
			zap.Int64("rule_id", ruleID),
			zap.Int64("action_id", actionID),
			zap.String("amount", amount.String()),
			zap.String("subtotal", subtotal.Amount.String()),
		)
		if actual.IsZero() {
			return c.recordSupersededSubtotal(amount, ruleID, actionID)
		}
	}

	if !c.exchange {
		n := c.promotions.SupersedeWhere(func(r promotion.DiscountRecord) bool {
			return r.Kind() == promotion.KindSubtotal
		})
		if err := c.promotions.AddDiscountRecord(promotion.NewSubtotalDiscountRecord(ruleID, actionID, actual)); err != nil {
			return err
		}
		c.lg.Debug("Subtotal discount adopted",
			zap.Int64("rule_id", ruleID),
			zap.Int64("action_id", actionID),
			zap.String("amount", actual.String()),
			zap.Int("superseded", n),
		)
	}
	c.subtotalDiscount = actual
	c.subtotalOverride = decimal.NullDecimal{}
	return nil
}

func (c *Cart) recordSupersededSubtotal(amount decimal.Decimal, ruleID, actionID int64) error {
	r := promotion.NewSubtotalDiscountRecord(ruleID, actionID, amount)
	r.MarkSuperseded()
	c.lg.Debug("Subtotal discount superseded",
		zap.Int64("rule_id", ruleID),
		zap.Int64("action_id", actionID),
		zap.String("amount", amount.String()),
	)
	return c.promotions.AddDiscountRecord(r)
}

// SetSubtotalDiscountOverride fixes the subtotal discount used by totals in
// place of the adopted one. A larger rule discount adopted later replaces
// it, and ClearPromotions removes it.
func (c *Cart) SetSubtotalDiscountOverride(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "subtotal discount override %s", amount)
	}
	c.subtotalOverride = decimal.NewNullDecimal(amount)
	return nil
}

// ClearSubtotalDiscountOverride removes the subtotal discount override.
func (c *Cart) ClearSubtotalDiscountOverride() { c.subtotalOverride = decimal.NullDecimal{} }

// SubtotalDiscount returns the subtotal discount used by totals: the
// override when set, the adopted discount otherwise, never more than the
// current subtotal.
func (c *Cart) SubtotalDiscount() money.Money {
	subtotal, err := c.Subtotal()
	if err != nil {
		return money.New(c.effectiveSubtotalDiscount(), c.currency)
	}
	return money.New(c.subtotalDiscountWithin(subtotal.Amount), c.currency)
}

func (c *Cart) effectiveSubtotalDiscount() decimal.Decimal {
	if c.subtotalOverride.Valid {
		return c.subtotalOverride.Decimal
	}
	return c.subtotalDiscount
}

// subtotalDiscountWithin clamps the effective discount to [0, subtotal].
// Items removed after a discount was adopted can leave it above the
// subtotal.
func (c *Cart) subtotalDiscountWithin(subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, decimal.Min(c.effectiveSubtotalDiscount(), subtotal))
}

// ApplyItemDiscount records that a rule action discounted qty units of an
// item. Repeated applications by the same action widen the quantity the
// record applies to and keep the first amount. The item's own discount is
// adjusted separately through Item.ApplyDiscount.
func (c *Cart) ApplyItemDiscount(ruleID, actionID int64, itemID ItemID, amount decimal.Decimal, qty int) error {
	it, ok := c.items[itemID]
	if !ok {
		return errors.Wrapf(ErrItemNotFound, "item %d", itemID)
	}
	if amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "item discount %s", amount)
	}
	if qty < 0 {
		return errors.Wrapf(ErrInvalidQuantity, "item discount quantity %d", qty)
	}

	key := promotion.Key{RuleID: ruleID, ActionID: actionID}
	existing, ok := c.promotions.DiscountRecord(ruleID, actionID)
	if !ok {
		return c.promotions.AddDiscountRecord(promotion.NewItemDiscountRecord(ruleID, actionID, it.guid, amount, qty))
	}
	if existing.Kind() != promotion.KindItem {
		return errors.Wrapf(promotion.ErrRecordKindMismatch,
			"rule %d action %d: stored %s", ruleID, actionID, existing.Kind())
	}
	return c.promotions.AccumulateQuantity(key, qty)
}

// ClearPromotions removes every discount: the records, the item discounts,
// the shipping discounts, the adopted subtotal discount and its override.
// Shipping list prices are kept.
func (c *Cart) ClearPromotions() {
	c.promotions.Clear()
	for _, it := range c.items {
		it.ClearDiscount()
	}
	for _, p := range c.shippingPricing {
		p.discount = decimal.NullDecimal{}
	}
	c.subtotalDiscount = decimal.Zero
	c.subtotalOverride = decimal.NullDecimal{}
}
