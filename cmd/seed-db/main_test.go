package main

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
)

// --- Mock implementations ---

type recordingStore struct {
	skus    []catalog.SKU
	rules   []coupon.Rule
	configs []coupon.Config
	coupons []coupon.Coupon
	certs   []giftcert.Account
}

func (s *recordingStore) UpsertSKU(_ context.Context, sku catalog.SKU) error {
	s.skus = append(s.skus, sku)
	return nil
}

func (s *recordingStore) UpsertRule(_ context.Context, rule coupon.Rule) error {
	s.rules = append(s.rules, rule)
	return nil
}

func (s *recordingStore) UpsertConfig(_ context.Context, cfg coupon.Config) error {
	s.configs = append(s.configs, cfg)
	return nil
}

func (s *recordingStore) InsertCoupons(_ context.Context, coupons []coupon.Coupon) (int64, error) {
	s.coupons = append(s.coupons, coupons...)
	return int64(len(coupons)), nil
}

func (s *recordingStore) UpsertGiftCertificate(_ context.Context, a giftcert.Account) error {
	s.certs = append(s.certs, a)
	return nil
}

func TestApply_SeedFile(t *testing.T) {
	seed, err := readSeed("")
	require.NoError(t, err)

	s := &recordingStore{}
	require.NoError(t, apply(context.Background(), s, seed))

	assert.Len(t, s.skus, 6)
	require.Len(t, s.rules, 3)
	assert.Equal(t, "SPRING", s.rules[0].Code)
	assert.True(t, s.rules[0].LimitedUseCondition)
	require.Len(t, s.rules[0].Actions, 1)
	assert.Equal(t, int64(10), s.rules[0].Actions[0].RuleID)

	// TENOFF has no coupons, so only two configs are written.
	require.Len(t, s.configs, 2)
	assert.Equal(t, coupon.LimitPerAnyUser, s.configs[1].UsageType)
	assert.Len(t, s.coupons, 3)

	require.Len(t, s.certs, 2)
	assert.Equal(t, "EUR", s.certs[1].Certificate.Currency.String())
	assert.True(t, decimal.RequireFromString("50").Equal(s.certs[1].Balance))
}

func TestReadSeed_File(t *testing.T) {
	seed, err := readSeed("../../db/seed/seed.yaml")
	require.NoError(t, err)
	assert.Len(t, seed.Promotions, 3)

	_, err = readSeed("../../db/seed/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open seed file")
}

func TestApply_DefaultsUsageType(t *testing.T) {
	seed, err := decodeSeed(strings.NewReader(`
promotions:
  - {id: 1, code: R, actions: [{id: 1, kind: subtotal}], coupons: [C1]}
`))
	require.NoError(t, err)

	s := &recordingStore{}
	require.NoError(t, apply(context.Background(), s, seed))
	require.Len(t, s.configs, 1)
	assert.Equal(t, coupon.LimitPerCoupon, s.configs[0].UsageType)
	assert.Equal(t, "R", s.coupons[0].Config.RuleCode)
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{name: "missing code", doc: "promotions: [{id: 1}]", wantMsg: "code is required"},
		{name: "bad usage type", doc: "promotions: [{id: 1, code: R, usage_type: WEEKLY}]", wantMsg: "unknown usage type"},
		{name: "unknown field", doc: "products: []", wantMsg: "products"},
		{name: "bad action", doc: "promotions: [{id: 1, code: R, actions: [{id: 1, kind: item}]}]", wantMsg: "promotion \"R\""},
		{name: "bad currency", doc: "gift_certificates: [{code: GC, currency: NOPE, balance: 1}]", wantMsg: "gift certificate GC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed, err := decodeSeed(strings.NewReader(tt.doc))
			if err == nil {
				err = apply(context.Background(), &recordingStore{}, seed)
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
