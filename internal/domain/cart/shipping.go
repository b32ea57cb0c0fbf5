package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/promotion"
	"github.com/xenking/kart-pricing/internal/money"
)

// ShippingOption is a quoted shipping option with its list price.
type ShippingOption struct {
	Code      string
	ListPrice money.Money
}

// ShippingPricingSnapshot is the immutable pricing of one shipping option.
type ShippingPricingSnapshot struct {
	ListPrice      money.Money
	DiscountAmount money.Money
	PromotedPrice  money.Money
}

type shippingPricing struct {
	listPrice decimal.NullDecimal
	discount  decimal.NullDecimal
}

func (c *Cart) pricingFor(code string) *shippingPricing {
	p, ok := c.shippingPricing[code]
	if !ok {
		p = &shippingPricing{}
		c.shippingPricing[code] = p
	}
	return p
}

// SetShippingOptions replaces the available shipping options with the
// quoted ones and records their list prices.
func (c *Cart) SetShippingOptions(options ...ShippingOption) error {
	for _, o := range options {
		if err := c.checkMoney(o.ListPrice); err != nil {
			return errors.Wrapf(err, "shipping option %q", o.Code)
		}
	}
	c.shippingOptions = c.shippingOptions[:0]
	for _, o := range options {
		c.shippingOptions = append(c.shippingOptions, o.Code)
		c.pricingFor(o.Code).listPrice = decimal.NewNullDecimal(o.ListPrice.Amount)
	}
	return nil
}

// ShippingOptions returns the codes of the available shipping options.
func (c *Cart) ShippingOptions() []string {
	return append([]string(nil), c.shippingOptions...)
}

// SetShippingListPrice records the list price of a shipping option.
func (c *Cart) SetShippingListPrice(code string, price money.Money) error {
	if err := c.checkMoney(price); err != nil {
		return errors.Wrapf(err, "shipping option %q", code)
	}
	c.pricingFor(code).listPrice = decimal.NewNullDecimal(price.Amount)
	return nil
}

// SelectShippingOption selects the option used for shipping cost.
func (c *Cart) SelectShippingOption(code string) { c.selectedShipping = code }

// ClearSelectedShippingOption deselects the shipping option.
func (c *Cart) ClearSelectedShippingOption() { c.selectedShipping = "" }

// SelectedShippingOption returns the selected option code, or "".
func (c *Cart) SelectedShippingOption() string { return c.selectedShipping }

// SetShippingDiscountIfLower records a shipping discount for an option and
// adopts it when it beats the option's current discount. Only the largest
// discount per option stays live; the others are kept superseded.
// Re-applying an identical discount is a no-op.
func (c *Cart) SetShippingDiscountIfLower(code string, ruleID, actionID int64, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "shipping discount %s", amount)
	}

	candidate := promotion.NewShippingDiscountRecord(ruleID, actionID, code, amount)
	if existing, ok := c.promotions.DiscountRecord(ruleID, actionID); ok {
		if promotion.SameFacts(existing, candidate) {
			return nil
		}
		if existing.Kind() != promotion.KindShipping {
			return errors.Wrapf(promotion.ErrRecordKindMismatch,
				"rule %d action %d: stored %s", ruleID, actionID, existing.Kind())
		}
	}

	pricing := c.pricingFor(code)
	if !pricing.discount.Valid || pricing.discount.Decimal.LessThan(amount) {
		pricing.discount = decimal.NewNullDecimal(amount)
		key := candidate.Key()
		n := c.promotions.SupersedeWhere(func(r promotion.DiscountRecord) bool {
			ship, ok := r.(*promotion.ShippingDiscountRecord)
			return ok && ship.ShippingOptionCode() == code && r.Key() != key
		})
		c.lg.Debug("Shipping discount adopted",
			zap.String("option", code),
			zap.Int64("rule_id", ruleID),
			zap.Int64("action_id", actionID),
			zap.String("amount", amount.String()),
			zap.Int("superseded", n),
		)
	} else {
		candidate.MarkSuperseded()
	}

	return c.promotions.AddDiscountRecord(candidate)
}

// ShippingPricingSnapshot returns the pricing of a shipping option. The list
// price of the option must have been set.
func (c *Cart) ShippingPricingSnapshot(code string) (ShippingPricingSnapshot, error) {
	p, ok := c.shippingPricing[code]
	if !ok || !p.listPrice.Valid {
		return ShippingPricingSnapshot{}, errors.Wrapf(ErrShippingPricingUnavailable, "shipping option %q", code)
	}
	list := money.New(p.listPrice.Decimal, c.currency)
	discount := money.Zero(c.currency)
	if p.discount.Valid {
		discount = money.New(p.discount.Decimal, c.currency)
	}
	promoted := money.New(list.Amount.Sub(discount.Amount), c.currency).FloorZero()
	return ShippingPricingSnapshot{
		ListPrice:      list,
		DiscountAmount: discount,
		PromotedPrice:  promoted,
	}, nil
}

// SetShippingCostOverride fixes the shipping cost regardless of options.
func (c *Cart) SetShippingCostOverride(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "shipping cost override %s", amount)
	}
	c.shippingOverride = decimal.NewNullDecimal(amount)
	return nil
}

// ClearShippingCostOverride removes the shipping cost override.
func (c *Cart) ClearShippingCostOverride() { c.shippingOverride = decimal.NullDecimal{} }

// ShippingCost returns the override when set, zero when nothing needs
// shipping or no option is available, and otherwise the promoted price of
// the selected option.
func (c *Cart) ShippingCost() (money.Money, error) {
	snap, err := c.selectedShippingPricing()
	return snap.PromotedPrice, err
}

// BeforeDiscountShippingCost returns the shipping cost before shipping
// discounts.
func (c *Cart) BeforeDiscountShippingCost() (money.Money, error) {
	snap, err := c.selectedShippingPricing()
	return snap.ListPrice, err
}

// selectedShippingPricing resolves the pricing shipping cost is based on.
func (c *Cart) selectedShippingPricing() (ShippingPricingSnapshot, error) {
	if c.shippingOverride.Valid {
		fixed := money.New(c.shippingOverride.Decimal, c.currency)
		return ShippingPricingSnapshot{ListPrice: fixed, DiscountAmount: money.Zero(c.currency), PromotedPrice: fixed}, nil
	}
	needsShipping, err := c.RequiresShipping()
	if err != nil {
		return ShippingPricingSnapshot{}, err
	}
	if !needsShipping || len(c.shippingOptions) == 0 {
		zero := money.Zero(c.currency)
		return ShippingPricingSnapshot{ListPrice: zero, DiscountAmount: zero, PromotedPrice: zero}, nil
	}
	if c.selectedShipping == "" {
		return ShippingPricingSnapshot{}, ErrNoShippingOptionSelected
	}
	snap, err := c.ShippingPricingSnapshot(c.selectedShipping)
	if err != nil {
		return ShippingPricingSnapshot{}, err
	}
	return snap, nil
}

// ShippingDiscount returns the discount applied to the selected option.
func (c *Cart) ShippingDiscount() money.Money {
	if c.shippingOverride.Valid || c.selectedShipping == "" {
		return money.Zero(c.currency)
	}
	p, ok := c.shippingPricing[c.selectedShipping]
	if !ok || !p.discount.Valid {
		return money.Zero(c.currency)
	}
	return money.New(p.discount.Decimal, c.currency)
}
