package quote

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
	"github.com/xenking/kart-pricing/internal/domain/tax"
	"github.com/xenking/kart-pricing/internal/money"
)

// recordingResolver remembers the rules of the codes it resolved so that
// their coupon uses can be counted after pricing.
type recordingResolver struct {
	inner cart.CouponResolver
	rules map[int64]*coupon.Rule
}

func (r *recordingResolver) Resolve(ctx context.Context, req coupon.UseRequest) (*coupon.Resolution, error) {
	res, err := r.inner.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	r.rules[res.Rule.ID] = res.Rule
	return res, nil
}

// Evaluate prices s against src.
func Evaluate(ctx context.Context, s *Scenario, src Sources) (*Breakdown, error) {
	lg := zctx.From(ctx)

	cur, err := money.ParseCurrency(s.Currency)
	if err != nil {
		return nil, errors.Wrap(err, "scenario currency")
	}

	cfg := cart.Config{
		GUID:             s.GUID,
		StoreCode:        s.Store,
		Currency:         cur,
		TaxInclusive:     s.TaxInclusive,
		Exchange:         s.Exchange,
		SKUs:             src.SKUs,
		GiftCertificates: src.Balances,
		Logger:           lg,
	}
	var resolver *recordingResolver
	if src.Coupons != nil {
		resolver = &recordingResolver{inner: src.Coupons, rules: make(map[int64]*coupon.Rule)}
		cfg.Coupons = resolver
	}

	c, err := cart.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	c.SetShopper(cart.Shopper{Email: s.Shopper.Email, Anonymous: s.Shopper.Anonymous})

	for _, it := range s.Items {
		if err := addItem(c, 0, it); err != nil {
			return nil, err
		}
	}

	if err := applyShipping(c, s.Shipping); err != nil {
		return nil, err
	}
	c.SetTaxResult(taxResult(s))

	var rejected []string
	if resolver != nil {
		for _, code := range s.Codes {
			ok, err := c.ApplyPromotionCode(ctx, code)
			if err != nil {
				return nil, errors.Wrapf(err, "apply code %q", code)
			}
			if !ok {
				rejected = append(rejected, code)
			}
		}
	} else if len(s.Codes) > 0 {
		lg.Warn("No coupon source, promotion codes ignored", zap.Strings("codes", s.Codes))
		rejected = slices.Clone(s.Codes)
	}

	for i, a := range s.Actions {
		if err := replay(c, a); err != nil {
			return nil, errors.Wrapf(err, "action %d (rule %d action %d)", i, a.Rule, a.Action)
		}
	}

	if s.SubtotalDiscountOverride != nil {
		if err := c.SetSubtotalDiscountOverride(s.SubtotalDiscountOverride.Decimal); err != nil {
			return nil, errors.Wrap(err, "subtotal discount override")
		}
	}

	for _, code := range s.Redeem {
		gc, ok := src.giftCertificate(code)
		if !ok {
			return nil, errors.Errorf("gift certificate %q not found", code)
		}
		if err := c.ApplyGiftCertificate(&gc); err != nil {
			return nil, errors.Wrapf(err, "redeem %q", code)
		}
	}

	b, err := breakdown(c)
	if err != nil {
		return nil, err
	}
	b.RejectedCodes = rejected

	if resolver != nil {
		if err := countCouponUses(ctx, c, s, src, resolver, b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func addItem(c *cart.Cart, parent cart.ItemID, it Item) error {
	spec := cart.ItemSpec{
		GUID:     it.GUID,
		SKUCode:  it.SKU,
		Quantity: it.Quantity,
		Prices: cart.Prices{
			List:     nullAmount(it.ListPrice),
			Sale:     nullAmount(it.SalePrice),
			Promoted: nullAmount(it.PromotedPrice),
		},
	}

	var (
		id  cart.ItemID
		err error
	)
	if parent == 0 {
		id, err = c.AddItem(spec)
	} else {
		id, err = c.AddChild(parent, spec)
	}
	if err != nil {
		return errors.Wrapf(err, "add item %q", it.SKU)
	}

	for _, child := range it.Children {
		if err := addItem(c, id, child); err != nil {
			return err
		}
	}
	return nil
}

func nullAmount(a *Amount) decimal.NullDecimal {
	if a == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(a.Decimal)
}

func applyShipping(c *cart.Cart, s Shipping) error {
	if len(s.Options) > 0 {
		options := make([]cart.ShippingOption, 0, len(s.Options))
		for _, o := range s.Options {
			options = append(options, cart.ShippingOption{Code: o.Code, ListPrice: money.New(o.Price.Decimal, c.Currency())})
		}
		if err := c.SetShippingOptions(options...); err != nil {
			return errors.Wrap(err, "shipping options")
		}
	}
	if s.Selected != "" {
		c.SelectShippingOption(s.Selected)
	}
	if s.Override != nil {
		if err := c.SetShippingCostOverride(s.Override.Decimal); err != nil {
			return errors.Wrap(err, "shipping override")
		}
	}
	return nil
}

func taxResult(s *Scenario) tax.Result {
	r := tax.Result{
		TaxInclusive: s.TaxInclusive,
		TotalTaxes:   s.Tax.Total.Decimal,
	}
	if len(s.Tax.Items) > 0 {
		r.ItemTaxes = make(map[string]decimal.Decimal, len(s.Tax.Items))
		for guid, v := range s.Tax.Items {
			r.ItemTaxes[guid] = v.Decimal
		}
	}
	return r
}

func replay(c *cart.Cart, a Action) error {
	switch promotion.Kind(a.Kind) {
	case promotion.KindItem:
		it, ok := c.ItemByGUID(a.Item)
		if !ok {
			return errors.Wrapf(cart.ErrItemNotFound, "item %q", a.Item)
		}
		qty := a.Quantity
		if qty == 0 {
			qty = it.Quantity()
		}
		if err := c.ApplyItemDiscount(a.Rule, a.Action, it.ID(), a.Amount.Decimal, qty); err != nil {
			return err
		}
		it.ApplyDiscount(a.Amount.Decimal)
		return nil
	case promotion.KindSubtotal:
		return c.SetSubtotalDiscount(a.Amount.Decimal, a.Rule, a.Action)
	case promotion.KindShipping:
		return c.SetShippingDiscountIfLower(a.Option, a.Rule, a.Action, a.Amount.Decimal)
	default:
		return errors.Errorf("unknown action kind %q", a.Kind)
	}
}

func countCouponUses(ctx context.Context, c *cart.Cart, s *Scenario, src Sources, resolver *recordingResolver, b *Breakdown) error {
	lg := zctx.From(ctx)

	byRule := c.PromotionCodesByRule()
	ids := make([]int64, 0, len(byRule))
	for id := range byRule {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		rule, ok := resolver.rules[id]
		if !ok {
			continue
		}
		use := CouponUse{
			RuleID:   id,
			RuleCode: rule.Code,
			Codes:    byRule[id],
			Uses:     coupon.UseCount(rule, c.PromotionRecordContainer(), c),
		}
		if s.Commit && use.Uses > 0 {
			saved, err := src.Coupons.RecordUses(ctx, rule, use.Codes, use.Uses, s.Shopper.Email)
			if err != nil {
				return errors.Wrapf(err, "record uses of rule %q", rule.Code)
			}
			use.Recorded = saved
		}
		lg.Debug("Coupon uses counted",
			zap.Int64("rule_id", id),
			zap.Int("uses", use.Uses),
			zap.Bool("committed", use.Recorded != nil),
		)
		b.CouponUses = append(b.CouponUses, use)
	}
	return nil
}
