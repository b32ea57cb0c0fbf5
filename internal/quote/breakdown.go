package quote

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
	"github.com/xenking/kart-pricing/internal/money"
)

// Breakdown is the priced result of a scenario.
type Breakdown struct {
	CartGUID string
	Currency currency.Unit
	Items    []LineItem

	Subtotal                money.Money
	SubtotalDiscount        money.Money
	ShippingListPrice       money.Money
	ShippingDiscount        money.Money
	ShippingCost            money.Money
	Taxes                   money.Money
	TotalBeforeRedeem       money.Money
	GiftCertificateDiscount money.Money
	Total                   money.Money

	Records       []Record
	Codes         []string
	RejectedCodes []string
	CouponUses    []CouponUse
}

// LineItem is a priced leaf item.
type LineItem struct {
	GUID     string
	SKU      string
	Quantity int
	Price    money.Money
	// SubtotalDiscount is the item's share of the subtotal discount.
	SubtotalDiscount decimal.Decimal
}

// Record is a discount record of the cart.
type Record struct {
	RuleID     int64
	ActionID   int64
	Kind       promotion.Kind
	Amount     decimal.Decimal
	Superseded bool
	// Target is the item GUID or the shipping option code.
	Target string
}

// CouponUse is the coupon consumption of one rule.
type CouponUse struct {
	RuleID   int64
	RuleCode string
	Codes    []string
	Uses     int
	// Recorded holds the saved usages when the quote was committed.
	Recorded []coupon.Usage
}

func breakdown(c *cart.Cart) (*Breakdown, error) {
	b := &Breakdown{
		CartGUID:         c.GUID(),
		Currency:         c.Currency(),
		SubtotalDiscount: c.SubtotalDiscount(),
		ShippingDiscount: c.ShippingDiscount(),
		Taxes:            money.New(c.TaxResult().TotalTaxes, c.Currency()),
		Codes:            c.PromotionCodes(),
	}

	var err error
	if b.Subtotal, err = c.Subtotal(); err != nil {
		return nil, errors.Wrap(err, "subtotal")
	}
	if b.ShippingListPrice, err = c.BeforeDiscountShippingCost(); err != nil {
		return nil, errors.Wrap(err, "shipping list price")
	}
	if b.ShippingCost, err = c.ShippingCost(); err != nil {
		return nil, errors.Wrap(err, "shipping cost")
	}
	if b.TotalBeforeRedeem, err = c.TotalBeforeRedeem(); err != nil {
		return nil, errors.Wrap(err, "total before redeem")
	}
	if b.GiftCertificateDiscount, err = c.GiftCertificateDiscount(); err != nil {
		return nil, errors.Wrap(err, "gift certificate discount")
	}
	if b.Total, err = c.Total(); err != nil {
		return nil, errors.Wrap(err, "total")
	}

	leaves, err := c.ApportionedLeafItems()
	if err != nil {
		return nil, errors.Wrap(err, "leaf items")
	}
	shares, err := c.ApportionSubtotalDiscount()
	if err != nil {
		return nil, errors.Wrap(err, "apportion subtotal discount")
	}
	for _, l := range leaves {
		b.Items = append(b.Items, LineItem{
			GUID:             l.Item.GUID(),
			SKU:              l.Item.SKUCode(),
			Quantity:         l.Item.Quantity(),
			Price:            l.Price,
			SubtotalDiscount: shares[l.Item.GUID()],
		})
	}

	for _, r := range c.PromotionRecordContainer().AllDiscountRecords() {
		rec := Record{
			RuleID:     r.Key().RuleID,
			ActionID:   r.Key().ActionID,
			Kind:       r.Kind(),
			Amount:     r.DiscountAmount(),
			Superseded: r.Superseded(),
		}
		switch v := r.(type) {
		case *promotion.ItemDiscountRecord:
			rec.Target = v.ItemGUID()
		case *promotion.ShippingDiscountRecord:
			rec.Target = v.ShippingOptionCode()
		}
		b.Records = append(b.Records, rec)
	}
	return b, nil
}

// LiveRecords returns the number of records that were not superseded.
func (b *Breakdown) LiveRecords() int {
	var n int
	for _, r := range b.Records {
		if !r.Superseded {
			n++
		}
	}
	return n
}

// TotalCouponUses sums the coupon uses over all rules.
func (b *Breakdown) TotalCouponUses() int {
	var n int
	for _, u := range b.CouponUses {
		n += u.Uses
	}
	return n
}

// Encode writes b as a JSON object. Amounts are encoded as strings with the
// currency's fraction digits.
func (b *Breakdown) Encode(e *jx.Encoder) {
	digits := money.FractionDigits(b.Currency)
	amount := func(d decimal.Decimal) string { return d.StringFixed(digits) }

	e.Obj(func(e *jx.Encoder) {
		e.Field("cart", func(e *jx.Encoder) { e.Str(b.CartGUID) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(b.Currency.String()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range b.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("guid", func(e *jx.Encoder) { e.Str(it.GUID) })
						e.Field("sku", func(e *jx.Encoder) { e.Str(it.SKU) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { e.Str(amount(it.Price.Amount)) })
						e.Field("subtotal_discount", func(e *jx.Encoder) { e.Str(amount(it.SubtotalDiscount)) })
					})
				}
			})
		})
		e.Field("totals", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, f := range []struct {
					name string
					m    money.Money
				}{
					{"subtotal", b.Subtotal},
					{"subtotal_discount", b.SubtotalDiscount},
					{"shipping_list_price", b.ShippingListPrice},
					{"shipping_discount", b.ShippingDiscount},
					{"shipping", b.ShippingCost},
					{"taxes", b.Taxes},
					{"total_before_redeem", b.TotalBeforeRedeem},
					{"gift_certificate_discount", b.GiftCertificateDiscount},
					{"total", b.Total},
				} {
					e.Field(f.name, func(e *jx.Encoder) { e.Str(amount(f.m.Amount)) })
				}
			})
		})
		e.Field("discount_records", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, r := range b.Records {
					e.Obj(func(e *jx.Encoder) {
						e.Field("rule", func(e *jx.Encoder) { e.Int64(r.RuleID) })
						e.Field("action", func(e *jx.Encoder) { e.Int64(r.ActionID) })
						e.Field("kind", func(e *jx.Encoder) { e.Str(string(r.Kind)) })
						e.Field("amount", func(e *jx.Encoder) { e.Str(r.Amount.String()) })
						e.Field("superseded", func(e *jx.Encoder) { e.Bool(r.Superseded) })
						if r.Target != "" {
							e.Field("target", func(e *jx.Encoder) { e.Str(r.Target) })
						}
					})
				}
			})
		})
		e.Field("codes", func(e *jx.Encoder) { encodeStrings(e, b.Codes) })
		if len(b.RejectedCodes) > 0 {
			e.Field("rejected_codes", func(e *jx.Encoder) { encodeStrings(e, b.RejectedCodes) })
		}
		e.Field("coupon_uses", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, u := range b.CouponUses {
					e.Obj(func(e *jx.Encoder) {
						e.Field("rule", func(e *jx.Encoder) { e.Int64(u.RuleID) })
						e.Field("rule_code", func(e *jx.Encoder) { e.Str(u.RuleCode) })
						e.Field("codes", func(e *jx.Encoder) { encodeStrings(e, u.Codes) })
						e.Field("uses", func(e *jx.Encoder) { e.Int(u.Uses) })
						if u.Recorded != nil {
							e.Field("recorded", func(e *jx.Encoder) {
								e.Arr(func(e *jx.Encoder) {
									for _, rec := range u.Recorded {
										e.Obj(func(e *jx.Encoder) {
											e.Field("code", func(e *jx.Encoder) { e.Str(rec.Code) })
											e.Field("use_count", func(e *jx.Encoder) { e.Int(rec.UseCount) })
										})
									}
								})
							})
						}
					})
				}
			})
		})
	})
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range values {
			e.Str(v)
		}
	})
}
