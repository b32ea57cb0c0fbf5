package coupon

import (
	"context"
	"strings"
)

type usageKey struct {
	code  string
	email string
}

type mockCouponRepo struct {
	coupons map[string]*Coupon
	rules   map[string]*Rule
	usages  map[usageKey]Usage

	findErr  error
	usageErr error
	saveErr  error
	saved    []Usage
}

func newMockRepo() *mockCouponRepo {
	return &mockCouponRepo{
		coupons: make(map[string]*Coupon),
		rules:   make(map[string]*Rule),
		usages:  make(map[usageKey]Usage),
	}
}

func (m *mockCouponRepo) addCoupon(c Coupon) *mockCouponRepo {
	m.coupons[strings.ToUpper(c.Code)] = &c
	return m
}

func (m *mockCouponRepo) addRule(r Rule) *mockCouponRepo {
	m.rules[strings.ToUpper(r.Code)] = &r
	return m
}

func (m *mockCouponRepo) addUsage(u Usage) *mockCouponRepo {
	m.usages[usageKey{strings.ToUpper(u.Code), u.CustomerEmail}] = u
	return m
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	cp := *c
	return &cp, nil
}

func (m *mockCouponRepo) FindUsage(_ context.Context, code, email string) (*Usage, error) {
	if m.usageErr != nil {
		return nil, m.usageErr
	}
	u, ok := m.usages[usageKey{strings.ToUpper(code), email}]
	if !ok {
		return nil, ErrUsageNotFound
	}
	return &u, nil
}

func (m *mockCouponRepo) SaveUsage(_ context.Context, u Usage) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, u)
	m.usages[usageKey{strings.ToUpper(u.Code), u.CustomerEmail}] = u
	return nil
}

func (m *mockCouponRepo) RuleByCode(_ context.Context, ruleCode string) (*Rule, error) {
	r, ok := m.rules[strings.ToUpper(ruleCode)]
	if !ok {
		return nil, ErrRuleNotFound
	}
	cp := *r
	return &cp, nil
}
