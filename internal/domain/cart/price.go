package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/domain/tax"
	"github.com/xenking/kart-pricing/internal/money"
)

// PriceMode selects between the unit price and the quantity-extended price.
type PriceMode int

const (
	UnitPrice PriceMode = iota
	ExtendedPrice
)

// PriceCalculation describes how an item's price is computed.
type PriceCalculation struct {
	Mode PriceMode
	// CartDiscounts subtracts the item's non-coupon discount.
	CartDiscounts bool
	TaxHandling   tax.HandlingMode
}

// UnitPriceCalc returns a unit price calculation without discounts or tax
// adjustment.
func UnitPriceCalc() PriceCalculation {
	return PriceCalculation{Mode: UnitPrice}
}

// ExtendedPriceCalc returns an extended price calculation without discounts
// or tax adjustment.
func ExtendedPriceCalc() PriceCalculation {
	return PriceCalculation{Mode: ExtendedPrice}
}

// WithCartDiscounts returns a copy of p that subtracts cart discounts.
func (p PriceCalculation) WithCartDiscounts() PriceCalculation {
	p.CartDiscounts = true
	return p
}

// WithTax returns a copy of p using the tax handling mode.
func (p PriceCalculation) WithTax(mode tax.HandlingMode) PriceCalculation {
	p.TaxHandling = mode
	return p
}

// Calculate prices item. The result is never negative and is rounded to the
// currency digits: half even for tax-inclusive items, half up otherwise.
func (p PriceCalculation) Calculate(item *Item) money.Money {
	amount, _ := item.LowestUnitPrice()
	qty := decimal.NewFromInt(int64(item.quantity))

	switch p.Mode {
	case ExtendedPrice:
		amount = amount.Mul(qty)
		if p.CartDiscounts {
			amount = amount.Sub(item.discount)
		}
		amount = p.adjustTax(item, amount, item.tax)
	default:
		if p.CartDiscounts && item.quantity > 0 && !item.discount.IsZero() {
			amount = amount.Sub(money.DivRound(item.discount, qty))
		}
		if item.quantity > 0 {
			amount = p.adjustTax(item, amount, money.DivRound(item.tax, qty))
		}
	}

	m := money.New(amount, item.currency).FloorZero()
	if item.taxInclusive {
		return m.RoundHalfEven()
	}
	return m.RoundHalfUp()
}

func (p PriceCalculation) adjustTax(item *Item, amount, taxAmount decimal.Decimal) decimal.Decimal {
	switch {
	case item.taxInclusive && p.TaxHandling == tax.Exclude:
		return amount.Sub(taxAmount)
	case !item.taxInclusive && p.TaxHandling == tax.Include:
		return amount.Add(taxAmount)
	default:
		return amount
	}
}
