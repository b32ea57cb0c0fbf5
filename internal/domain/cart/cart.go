// Package cart prices a shopping cart and records the promotional discounts
// applied to it.
//
// A Cart owns its items, its shipping pricing and a promotion.Container. An
// external rule engine applies discounts through ApplyItemDiscount,
// SetSubtotalDiscount and SetShippingDiscountIfLower; the cart keeps the
// larger of conflicting discounts and supersedes the smaller. Totals are
// computed on demand from the current state.
//
// A Cart is not safe for concurrent use.
package cart

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
	"github.com/xenking/kart-pricing/internal/domain/tax"
	"github.com/xenking/kart-pricing/internal/money"
)

// Config holds the identity of a cart and its collaborators.
type Config struct {
	// GUID is generated when empty.
	GUID      string
	StoreCode string
	Currency  currency.Unit
	// TaxInclusive is copied onto every item added to the cart.
	TaxInclusive bool
	// Exchange marks carts that price an exchange order. Subtotal discounts
	// on such carts are adopted without recording discount records, while
	// item and shipping discounts are recorded as usual.
	Exchange bool

	SKUs             catalog.Lookup
	GiftCertificates giftcert.BalanceLookup
	// Coupons resolves promotion codes. Optional.
	Coupons CouponResolver
	// Apportioner splits bundle prices; defaults to pro rata by list price.
	Apportioner Apportioner
	Logger      *zap.Logger
}

// Shopper identifies who the cart belongs to for coupon usage limits.
type Shopper struct {
	Email     string
	Anonymous bool
}

// Cart is a shopping cart with its pricing state.
type Cart struct {
	guid         string
	storeCode    string
	currency     currency.Unit
	taxInclusive bool
	exchange     bool

	skus        catalog.Lookup
	balances    giftcert.BalanceLookup
	coupons     CouponResolver
	apportioner Apportioner
	lg          *zap.Logger

	items       map[ItemID]*Item
	roots       []ItemID
	nextID      ItemID
	removedSKUs map[string]struct{}

	subtotalDiscount decimal.Decimal
	subtotalOverride decimal.NullDecimal

	shippingOptions  []string
	shippingPricing  map[string]*shippingPricing
	selectedShipping string
	shippingOverride decimal.NullDecimal

	giftCerts      []giftcert.GiftCertificate
	giftCertsTotal decimal.Decimal

	// rule id to the codes that unlocked it
	promotionCodes map[int64][]string
	promotions     *promotion.Container

	taxResult    tax.Result
	estimateMode bool
	shopper      Shopper
}

var _ promotion.CartView = (*Cart)(nil)

// New returns an empty cart.
func New(cfg Config) (*Cart, error) {
	if cfg.SKUs == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "sku lookup is required")
	}
	if cfg.Currency == (currency.Unit{}) {
		return nil, errors.Wrap(ErrInvalidArgument, "currency is required")
	}
	if cfg.GUID == "" {
		cfg.GUID = uuid.NewString()
	}
	if cfg.GiftCertificates == nil {
		cfg.GiftCertificates = giftcert.Balances(nil)
	}
	if cfg.Apportioner == nil {
		cfg.Apportioner = ProRataApportioner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Cart{
		guid:            cfg.GUID,
		storeCode:       cfg.StoreCode,
		currency:        cfg.Currency,
		taxInclusive:    cfg.TaxInclusive,
		exchange:        cfg.Exchange,
		skus:            cfg.SKUs,
		balances:        cfg.GiftCertificates,
		coupons:         cfg.Coupons,
		apportioner:     cfg.Apportioner,
		lg:              cfg.Logger.With(zap.String("cart", cfg.GUID)),
		items:           make(map[ItemID]*Item),
		removedSKUs:     make(map[string]struct{}),
		shippingPricing: make(map[string]*shippingPricing),
		promotionCodes:  make(map[int64][]string),
		promotions:      promotion.NewContainer(),
	}
	return c, nil
}

func (c *Cart) GUID() string            { return c.guid }
func (c *Cart) StoreCode() string       { return c.storeCode }
func (c *Cart) Currency() currency.Unit { return c.currency }
func (c *Cart) TaxInclusive() bool      { return c.taxInclusive }
func (c *Cart) IsExchange() bool        { return c.exchange }

// PromotionRecordContainer returns the cart's discount records. Mutating it
// directly bypasses the cart's superseding rules.
func (c *Cart) PromotionRecordContainer() *promotion.Container { return c.promotions }

// SetShopper records who the cart belongs to.
func (c *Cart) SetShopper(s Shopper) { c.shopper = s }

// Shopper returns the cart's shopper.
func (c *Cart) Shopper() Shopper { return c.shopper }

// SetEstimateMode flags the cart as priced for an estimate only.
func (c *Cart) SetEstimateMode(v bool) { c.estimateMode = v }

// EstimateMode reports whether the cart is priced for an estimate.
func (c *Cart) EstimateMode() bool { return c.estimateMode }

// ClearEstimates drops the estimated shipping selection unless the cart is
// still in estimate mode.
func (c *Cart) ClearEstimates() {
	if !c.estimateMode {
		c.selectedShipping = ""
	}
}

// SetTaxResult stores the outcome of a tax calculation and assigns item taxes
// by GUID. Items without an entry get zero tax.
func (c *Cart) SetTaxResult(r tax.Result) {
	c.taxResult = r
	for _, it := range c.items {
		it.tax = r.ItemTax(it.guid)
	}
}

// TaxResult returns the last tax calculation result.
func (c *Cart) TaxResult() tax.Result { return c.taxResult }

func (c *Cart) checkMoney(m money.Money) error {
	if m.Currency != c.currency {
		return errors.Wrapf(ErrCurrencyMismatch, "%s, cart is %s", m.Currency, c.currency)
	}
	if m.Amount.IsNegative() {
		return errors.Wrapf(ErrNegativeAmount, "%s", m)
	}
	return nil
}

func (c *Cart) zero() money.Money { return money.Zero(c.currency) }
