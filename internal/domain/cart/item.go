package cart

import (
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/money"
)

// ItemID identifies an item inside one cart.
type ItemID int64

// Prices are the unit prices known for an item, all optional.
type Prices struct {
	List     decimal.NullDecimal
	Sale     decimal.NullDecimal
	Promoted decimal.NullDecimal
}

// ListPrice returns Prices with only a list price.
func ListPrice(v decimal.Decimal) Prices {
	return Prices{List: decimal.NewNullDecimal(v)}
}

func (p Prices) validate() error {
	for _, v := range []decimal.NullDecimal{p.List, p.Sale, p.Promoted} {
		if v.Valid && v.Decimal.IsNegative() {
			return ErrNegativeAmount
		}
	}
	return nil
}

// ItemSpec describes an item to add to a cart.
type ItemSpec struct {
	// GUID is generated when empty.
	GUID     string
	SKUCode  string
	Quantity int
	Prices   Prices
	// Currency of Prices; the zero value means the cart currency.
	Currency currency.Unit
}

// Item is a line item owned by a cart. Items are created and destroyed
// through the cart; the price-related setters here may be called by rule
// actions.
type Item struct {
	id           ItemID
	guid         string
	sku          catalog.SKU
	quantity     int
	parent       ItemID
	children     []ItemID
	taxInclusive bool
	discount     decimal.Decimal
	tax          decimal.Decimal
	prices       Prices
	currency     currency.Unit
}

func (i *Item) ID() ItemID           { return i.id }
func (i *Item) GUID() string         { return i.guid }
func (i *Item) SKU() catalog.SKU     { return i.sku }
func (i *Item) SKUCode() string      { return i.sku.Code }
func (i *Item) Quantity() int        { return i.quantity }
func (i *Item) TaxInclusive() bool   { return i.taxInclusive }
func (i *Item) Prices() Prices       { return i.prices }
func (i *Item) IsBundle() bool       { return i.sku.Bundle }
func (i *Item) IsShippable() bool    { return i.sku.Shippable }
func (i *Item) IsDiscountable() bool { return i.sku.Discountable }

// Currency returns the cart currency the item is priced in.
func (i *Item) Currency() currency.Unit { return i.currency }

// Parent returns the parent item id, or false for root items.
func (i *Item) Parent() (ItemID, bool) { return i.parent, i.parent != 0 }

// Children returns the ids of the item's children in order.
func (i *Item) Children() []ItemID { return slices.Clone(i.children) }

// Discount returns the accumulated non-coupon discount for the whole line.
func (i *Item) Discount() decimal.Decimal { return i.discount }

// Tax returns the total tax for the line.
func (i *Item) Tax() decimal.Decimal { return i.tax }

// SetQuantity changes the line quantity.
func (i *Item) SetQuantity(q int) error {
	if q <= 0 {
		return ErrInvalidQuantity
	}
	i.quantity = q
	return nil
}

// SetPrices replaces the unit prices.
func (i *Item) SetPrices(p Prices) error {
	if err := p.validate(); err != nil {
		return err
	}
	i.prices = p
	return nil
}

// ApplyDiscount adds amount, rounded half up to the currency digits, to the
// line discount. Items whose SKU is not discountable ignore it. A negative
// running total resets the discount to zero.
func (i *Item) ApplyDiscount(amount decimal.Decimal) {
	if !i.sku.Discountable {
		return
	}
	i.discount = i.discount.Add(amount.Round(money.FractionDigits(i.currency)))
	if i.discount.IsNegative() {
		i.discount = decimal.Zero
	}
}

// ClearDiscount removes the line discount.
func (i *Item) ClearDiscount() { i.discount = decimal.Zero }

// LowestUnitPrice returns the lowest of the list, sale and promoted prices
// that are set.
func (i *Item) LowestUnitPrice() (decimal.Decimal, bool) {
	var (
		lowest decimal.Decimal
		found  bool
	)
	for _, v := range []decimal.NullDecimal{i.prices.List, i.prices.Sale, i.prices.Promoted} {
		if !v.Valid {
			continue
		}
		if !found || v.Decimal.LessThan(lowest) {
			lowest = v.Decimal
			found = true
		}
	}
	return lowest, found
}

// UnitTax returns the line tax divided by quantity, rounded half even to the
// currency digits.
func (i *Item) UnitTax() decimal.Decimal {
	if i.quantity <= 0 {
		return decimal.Zero
	}
	return money.DivRound(i.tax, decimal.NewFromInt(int64(i.quantity))).
		RoundBank(money.FractionDigits(i.currency))
}
