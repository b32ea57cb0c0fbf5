// Package quote prices a cart described by a scenario document. A scenario
// lists the cart contents, the shipping quote, the tax result and the
// outputs of the promotion rule engine; Evaluate builds the cart, replays
// those outputs in order and returns the pricing breakdown.
package quote

import (
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
)

// Amount is a decimal written as a YAML scalar, quoted or not.
type Amount struct {
	decimal.Decimal
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Amount) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: amount must be a scalar", n.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return errors.Wrapf(err, "line %d: parse amount %q", n.Line, n.Value)
	}
	a.Decimal = d
	return nil
}

// Scenario is a quote request.
type Scenario struct {
	GUID         string  `yaml:"guid"`
	Store        string  `yaml:"store"`
	Currency     string  `yaml:"currency"`
	TaxInclusive bool    `yaml:"tax_inclusive"`
	Exchange     bool    `yaml:"exchange"`
	Shopper      Shopper `yaml:"shopper"`

	// SKUs is an inline catalog, used when no catalog repository is wired.
	SKUs  []SKU  `yaml:"skus"`
	Items []Item `yaml:"items"`

	Shipping Shipping `yaml:"shipping"`
	Tax      Tax      `yaml:"tax"`

	// Promotions are inline rules and coupons, used when no coupon
	// repository is wired.
	Promotions []Promotion `yaml:"promotions"`
	Codes      []string    `yaml:"codes"`
	Actions    []Action    `yaml:"actions"`

	SubtotalDiscountOverride *Amount `yaml:"subtotal_discount_override"`

	// GiftCertificates are inline certificates, used when no gift
	// certificate repository is wired.
	GiftCertificates []GiftCertificate `yaml:"gift_certificates"`
	Redeem           []string          `yaml:"redeem"`

	// Commit records the coupon uses of the quote.
	Commit bool `yaml:"commit"`
}

// Shopper identifies the cart owner.
type Shopper struct {
	Email     string `yaml:"email"`
	Anonymous bool   `yaml:"anonymous"`
}

// SKU is an inline catalog entry.
type SKU struct {
	Code         string `yaml:"code"`
	Shippable    bool   `yaml:"shippable"`
	Bundle       bool   `yaml:"bundle"`
	Discountable bool   `yaml:"discountable"`
	Weight       Amount `yaml:"weight"`
}

func (s SKU) catalog() catalog.SKU {
	return catalog.SKU{
		Code:         s.Code,
		Shippable:    s.Shippable,
		Bundle:       s.Bundle,
		Discountable: s.Discountable,
		Weight:       s.Weight.Decimal,
	}
}

// Item is a line item; bundle items list their constituents as children.
type Item struct {
	GUID          string  `yaml:"guid"`
	SKU           string  `yaml:"sku"`
	Quantity      int     `yaml:"quantity"`
	ListPrice     *Amount `yaml:"list_price"`
	SalePrice     *Amount `yaml:"sale_price"`
	PromotedPrice *Amount `yaml:"promoted_price"`
	Children      []Item  `yaml:"children"`
}

// Shipping is the shipping quote.
type Shipping struct {
	Options  []ShippingOption `yaml:"options"`
	Selected string           `yaml:"selected"`
	Override *Amount          `yaml:"override"`
}

// ShippingOption is a quoted option.
type ShippingOption struct {
	Code  string `yaml:"code"`
	Price Amount `yaml:"price"`
}

// Tax is the tax calculation result.
type Tax struct {
	Total Amount            `yaml:"total"`
	Items map[string]Amount `yaml:"items"`
}

// Promotion is an inline rule with its coupon policy and codes.
type Promotion struct {
	ID         int64             `yaml:"id"`
	Code       string            `yaml:"code"`
	Store      string            `yaml:"store"`
	LimitedUse bool              `yaml:"limited_use"`
	Actions    []PromotionAction `yaml:"actions"`
	UsageType  string            `yaml:"usage_type"`
	UsageLimit int               `yaml:"usage_limit"`
	Coupons    []string          `yaml:"coupons"`
}

// PromotionAction describes how a rule action counts coupon uses.
type PromotionAction struct {
	ID             int64  `yaml:"id"`
	Kind           string `yaml:"kind"`
	SinglePerCart  bool   `yaml:"single_per_cart"`
	PerCoupon      int    `yaml:"per_coupon"`
	ShippingOption string `yaml:"shipping_option"`
}

// Rule converts p to a coupon rule.
func (p Promotion) Rule() coupon.Rule {
	r := coupon.Rule{
		ID:                  p.ID,
		Code:                p.Code,
		StoreCode:           p.Store,
		LimitedUseCondition: p.LimitedUse,
	}
	for _, a := range p.Actions {
		r.Actions = append(r.Actions, promotion.Action{
			ID:                        a.ID,
			RuleID:                    p.ID,
			Kind:                      promotion.Kind(a.Kind),
			SinglePerCart:             a.SinglePerCart,
			DiscountQuantityPerCoupon: a.PerCoupon,
			ShippingOptionCode:        a.ShippingOption,
		})
	}
	return r
}

// Action is one output of the rule engine, replayed against the cart.
type Action struct {
	Rule   int64  `yaml:"rule"`
	Action int64  `yaml:"action"`
	Kind   string `yaml:"kind"`
	Amount Amount `yaml:"amount"`
	// Item is the GUID of the discounted item for item actions.
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
	// Option is the shipping option code for shipping actions.
	Option string `yaml:"option"`
}

// GiftCertificate is an inline certificate with its balance.
type GiftCertificate struct {
	Code     string `yaml:"code"`
	GUID     string `yaml:"guid"`
	Store    string `yaml:"store"`
	Currency string `yaml:"currency"`
	Balance  Amount `yaml:"balance"`
}

// Decode reads a scenario document.
func Decode(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the scenario for structural errors. Pricing errors are
// reported by Evaluate.
func (s *Scenario) Validate() error {
	if s.Store == "" {
		return errors.New("scenario: store is required")
	}
	if s.Currency == "" {
		return errors.New("scenario: currency is required")
	}
	for i, a := range s.Actions {
		switch promotion.Kind(a.Kind) {
		case promotion.KindItem:
			if a.Item == "" {
				return errors.Errorf("scenario: action %d: item is required", i)
			}
		case promotion.KindSubtotal:
		case promotion.KindShipping:
			if a.Option == "" {
				return errors.Errorf("scenario: action %d: option is required", i)
			}
		default:
			return errors.Errorf("scenario: action %d: unknown kind %q", i, a.Kind)
		}
	}
	for _, p := range s.Promotions {
		if p.UsageType != "" && !coupon.UsageType(p.UsageType).Valid() {
			return errors.Errorf("scenario: promotion %q: unknown usage type %q", p.Code, p.UsageType)
		}
		rule := p.Rule()
		for _, a := range rule.Actions {
			if err := a.Validate(); err != nil {
				return errors.Wrapf(err, "scenario: promotion %q", p.Code)
			}
		}
	}
	return nil
}

// SKUCodes returns the distinct SKU codes of all items, children included.
func (s *Scenario) SKUCodes() []string {
	seen := make(map[string]struct{})
	var codes []string
	var walk func(items []Item)
	walk = func(items []Item) {
		for _, it := range items {
			if _, ok := seen[it.SKU]; !ok {
				seen[it.SKU] = struct{}{}
				codes = append(codes, it.SKU)
			}
			walk(it.Children)
		}
	}
	walk(s.Items)
	return codes
}
