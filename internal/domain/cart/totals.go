package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/apportion"
	"github.com/xenking/kart-pricing/internal/money"
)

// Subtotal returns the sum of the priced leaf items, net of item discounts.
func (c *Cart) Subtotal() (money.Money, error) {
	leaves, err := c.ApportionedLeafItems()
	if err != nil {
		return money.Money{}, err
	}
	total := c.zero()
	for _, l := range leaves {
		total.Amount = total.Amount.Add(l.Price.Amount)
	}
	return total, nil
}

// TotalBeforeRedeem returns subtotal minus subtotal discount plus shipping,
// with taxes added when prices exclude them.
func (c *Cart) TotalBeforeRedeem() (money.Money, error) {
	subtotal, err := c.Subtotal()
	if err != nil {
		return money.Money{}, err
	}
	shipping, err := c.ShippingCost()
	if err != nil {
		return money.Money{}, errors.Wrap(err, "shipping cost")
	}
	amount := subtotal.Amount.Sub(c.subtotalDiscountWithin(subtotal.Amount)).Add(shipping.Amount)
	if !c.taxResult.TaxInclusive {
		amount = amount.Add(c.taxResult.TotalTaxes)
	}
	return money.New(amount, c.currency), nil
}

// GiftCertificateDiscount returns the amount redeemed from applied gift
// certificates, capped at the total before redemption.
func (c *Cart) GiftCertificateDiscount() (money.Money, error) {
	before, err := c.TotalBeforeRedeem()
	if err != nil {
		return money.Money{}, err
	}
	redeem := decimal.Max(decimal.Zero, decimal.Min(c.giftCertsTotal, before.Amount))
	return money.New(redeem, c.currency), nil
}

// Total returns the amount left to pay after gift certificates. It is never
// negative and has the scale of TotalBeforeRedeem when zero.
func (c *Cart) Total() (money.Money, error) {
	before, err := c.TotalBeforeRedeem()
	if err != nil {
		return money.Money{}, err
	}
	zero := money.New(decimal.New(0, before.Amount.Exponent()), c.currency)
	if !before.Amount.IsPositive() {
		return zero, nil
	}
	redeem := decimal.Min(c.giftCertsTotal, before.Amount)
	total := before.Amount.Sub(redeem)
	if total.IsNegative() {
		return zero, nil
	}
	return money.New(total, c.currency), nil
}

// ApportionSubtotalDiscount splits the subtotal discount across the
// discountable leaf items, keyed by item GUID.
func (c *Cart) ApportionSubtotalDiscount() (map[string]decimal.Decimal, error) {
	leaves, err := c.ApportionedLeafItems()
	if err != nil {
		return nil, err
	}
	lines := make([]apportion.Line, 0, len(leaves))
	for _, l := range leaves {
		if !l.Item.IsDiscountable() {
			continue
		}
		lines = append(lines, apportion.Line{
			Key:     l.Item.guid,
			SortKey: l.Item.sku.Code,
			Amount:  l.Price.Amount,
		})
	}
	subtotal, err := c.Subtotal()
	if err != nil {
		return nil, err
	}
	discount := c.subtotalDiscountWithin(subtotal.Amount)
	if len(lines) == 0 {
		if discount.IsPositive() {
			return nil, errors.Wrap(apportion.ErrDiscountExceedsTotal, "no discountable items")
		}
		return map[string]decimal.Decimal{}, nil
	}
	return apportion.Discount(discount, lines, money.FractionDigits(c.currency))
}
