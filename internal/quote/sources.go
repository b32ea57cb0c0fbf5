package quote

import (
	"context"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/money"
)

// CouponService resolves codes for a cart and records the uses a quote
// consumed.
type CouponService interface {
	cart.CouponResolver
	RecordUses(ctx context.Context, rule *coupon.Rule, codes []string, uses int, email string) ([]coupon.Usage, error)
}

var _ CouponService = (*coupon.Service)(nil)

// Sources are the lookups a quote is priced against.
type Sources struct {
	SKUs             catalog.Lookup
	GiftCertificates []giftcert.GiftCertificate
	Balances         giftcert.Balances
	// Coupons is optional; without it promotion codes are not applied.
	Coupons CouponService
}

func (s Sources) giftCertificate(code string) (giftcert.GiftCertificate, bool) {
	for _, gc := range s.GiftCertificates {
		if strings.EqualFold(gc.Code, code) {
			return gc, true
		}
	}
	return giftcert.GiftCertificate{}, false
}

// InlineSources builds sources from the inline sections of s.
func InlineSources(s *Scenario) (Sources, error) {
	skus := make([]catalog.SKU, 0, len(s.SKUs))
	for _, sku := range s.SKUs {
		skus = append(skus, sku.catalog())
	}

	src := Sources{
		SKUs:     catalog.NewMapLookup(skus...),
		Balances: make(giftcert.Balances, len(s.GiftCertificates)),
	}
	for _, gc := range s.GiftCertificates {
		cur, err := money.ParseCurrency(gc.Currency)
		if err != nil {
			return Sources{}, errors.Wrapf(err, "gift certificate %q", gc.Code)
		}
		src.GiftCertificates = append(src.GiftCertificates, giftcert.GiftCertificate{
			Code:      gc.Code,
			GUID:      gc.GUID,
			StoreCode: gc.Store,
			Currency:  cur,
		})
		src.Balances[gc.Code] = gc.Balance.Decimal
	}

	if len(s.Promotions) > 0 {
		src.Coupons = coupon.NewService(NewMemoryCoupons(s.Promotions))
	}
	return src, nil
}

// MemoryCoupons is an in-memory coupon.Repository.
type MemoryCoupons struct {
	mu      sync.Mutex
	coupons map[string]coupon.Coupon
	rules   map[string]coupon.Rule
	usages  map[[2]string]coupon.Usage
}

var _ coupon.Repository = (*MemoryCoupons)(nil)

// NewMemoryCoupons indexes the rules and coupons of promotions.
func NewMemoryCoupons(promotions []Promotion) *MemoryCoupons {
	m := &MemoryCoupons{
		coupons: make(map[string]coupon.Coupon),
		rules:   make(map[string]coupon.Rule),
		usages:  make(map[[2]string]coupon.Usage),
	}
	for _, p := range promotions {
		m.rules[strings.ToUpper(p.Code)] = p.Rule()
		usageType := coupon.UsageType(p.UsageType)
		if usageType == "" {
			usageType = coupon.LimitPerCoupon
		}
		cfg := coupon.Config{RuleCode: p.Code, UsageType: usageType, UsageLimit: p.UsageLimit}
		for _, code := range p.Coupons {
			m.coupons[strings.ToUpper(code)] = coupon.Coupon{Code: code, Config: cfg}
		}
	}
	return m
}

func (m *MemoryCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &c, nil
}

func (m *MemoryCoupons) FindUsage(_ context.Context, code, email string) (*coupon.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usages[[2]string{strings.ToUpper(code), email}]
	if !ok {
		return nil, coupon.ErrUsageNotFound
	}
	return &u, nil
}

func (m *MemoryCoupons) SaveUsage(_ context.Context, u coupon.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usages[[2]string{strings.ToUpper(u.Code), u.CustomerEmail}] = u
	return nil
}

func (m *MemoryCoupons) RuleByCode(_ context.Context, ruleCode string) (*coupon.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[strings.ToUpper(ruleCode)]
	if !ok {
		return nil, coupon.ErrRuleNotFound
	}
	return &r, nil
}
