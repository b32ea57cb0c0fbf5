package quote

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pricing/internal/domain/cart"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	f, err := os.Open(name)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	s, err := Decode(f)
	require.NoError(t, err)
	return s
}

func evaluate(t *testing.T, s *Scenario) *Breakdown {
	t.Helper()
	src, err := InlineSources(s)
	require.NoError(t, err)
	b, err := Evaluate(context.Background(), s, src)
	require.NoError(t, err)
	return b
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestEvaluate(t *testing.T) {
	s := loadScenario(t, "testdata/spring.yaml")
	b := evaluate(t, s)

	assert.Equal(t, "quote-1", b.CartGUID)
	requireAmount(t, "235.00", b.Subtotal.Amount)
	requireAmount(t, "15.00", b.SubtotalDiscount.Amount)
	requireAmount(t, "10.00", b.ShippingListPrice.Amount)
	requireAmount(t, "4.00", b.ShippingDiscount.Amount)
	requireAmount(t, "6.00", b.ShippingCost.Amount)
	requireAmount(t, "8.00", b.Taxes.Amount)
	requireAmount(t, "234.00", b.TotalBeforeRedeem.Amount)
	requireAmount(t, "30.00", b.GiftCertificateDiscount.Amount)
	requireAmount(t, "204.00", b.Total.Amount)

	prices := make(map[string]string, len(b.Items))
	shares := decimal.Zero
	for _, it := range b.Items {
		prices[it.GUID] = it.Price.Amount.StringFixed(2)
		shares = shares.Add(it.SubtotalDiscount)
	}
	assert.Equal(t, map[string]string{
		"line-1": "180.00",
		"line-2": "5.00",
		"kit-a":  "18.75",
		"kit-b":  "31.25",
	}, prices)
	requireAmount(t, "15.00", shares)

	records := make(map[promotion.Key]Record, len(b.Records))
	for _, r := range b.Records {
		records[promotion.Key{RuleID: r.RuleID, ActionID: r.ActionID}] = r
	}
	require.Len(t, records, 4)
	assert.True(t, records[promotion.Key{RuleID: 1, ActionID: 1}].Superseded)
	assert.False(t, records[promotion.Key{RuleID: 2, ActionID: 1}].Superseded)
	assert.Equal(t, "line-1", records[promotion.Key{RuleID: 10, ActionID: 1}].Target)
	assert.Equal(t, "STD", records[promotion.Key{RuleID: 3, ActionID: 1}].Target)
	assert.Equal(t, 3, b.LiveRecords())

	assert.Equal(t, []string{"spring-a"}, b.Codes)
	assert.Equal(t, []string{"BOGUS"}, b.RejectedCodes)
	require.Len(t, b.CouponUses, 1)
	assert.Equal(t, CouponUse{RuleID: 10, RuleCode: "SPRING", Codes: []string{"spring-a"}, Uses: 2}, b.CouponUses[0])
	assert.Equal(t, 2, b.TotalCouponUses())
}

func TestEvaluate_Commit(t *testing.T) {
	s := loadScenario(t, "testdata/spring.yaml")
	s.Commit = true

	src, err := InlineSources(s)
	require.NoError(t, err)
	b, err := Evaluate(context.Background(), s, src)
	require.NoError(t, err)

	require.Len(t, b.CouponUses, 1)
	require.Len(t, b.CouponUses[0].Recorded, 1)
	assert.Equal(t, "SPRING-A", b.CouponUses[0].Recorded[0].Code)
	assert.Equal(t, 2, b.CouponUses[0].Recorded[0].UseCount)

	// The recorded uses count against the limit of the next quote.
	b, err = Evaluate(context.Background(), s, src)
	require.NoError(t, err)
	assert.Equal(t, 4, b.CouponUses[0].Recorded[0].UseCount)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown sku",
			mutate:  func(s *Scenario) { s.Items = append(s.Items, Item{SKU: "NOPE", Quantity: 1}) },
			wantErr: cart.ErrUnknownSKU,
		},
		{
			name: "unknown discounted item",
			mutate: func(s *Scenario) {
				s.Actions = append(s.Actions, Action{Rule: 9, Action: 1, Kind: "item", Item: "ghost", Amount: Amount{d("1")}})
			},
			wantErr: cart.ErrItemNotFound,
		},
		{
			name:    "no shipping option selected",
			mutate:  func(s *Scenario) { s.Shipping.Selected = "" },
			wantErr: cart.ErrNoShippingOptionSelected,
		},
		{
			name:    "unknown gift certificate",
			mutate:  func(s *Scenario) { s.Redeem = []string{"GC-404"} },
			wantMsg: `gift certificate "GC-404" not found`,
		},
		{
			name:    "bad currency",
			mutate:  func(s *Scenario) { s.Currency = "ZZZZ" },
			wantMsg: "scenario currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadScenario(t, "testdata/spring.yaml")
			tt.mutate(s)
			src, err := InlineSources(s)
			require.NoError(t, err)

			_, err = Evaluate(context.Background(), s, src)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestEvaluate_WithoutCoupons(t *testing.T) {
	s := loadScenario(t, "testdata/spring.yaml")
	s.Promotions = nil

	b := evaluate(t, s)
	assert.Empty(t, b.Codes)
	assert.Equal(t, []string{"spring-a", "BOGUS"}, b.RejectedCodes)
	assert.Empty(t, b.CouponUses)
}

func TestDecode_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{name: "store required", doc: "currency: USD\n", wantMsg: "store is required"},
		{name: "currency required", doc: "store: S\n", wantMsg: "currency is required"},
		{name: "unknown field", doc: "store: S\ncurrency: USD\ncolour: red\n", wantMsg: "colour"},
		{name: "bad amount", doc: "store: S\ncurrency: USD\ntax: {total: lots}\n", wantMsg: `parse amount "lots"`},
		{
			name:    "unknown action kind",
			doc:     "store: S\ncurrency: USD\nactions: [{rule: 1, action: 1, kind: bonus, amount: 1}]\n",
			wantMsg: `unknown kind "bonus"`,
		},
		{
			name:    "item action without item",
			doc:     "store: S\ncurrency: USD\nactions: [{rule: 1, action: 1, kind: item, amount: 1}]\n",
			wantMsg: "item is required",
		},
		{
			name:    "invalid per coupon quantity",
			doc:     "store: S\ncurrency: USD\npromotions: [{id: 1, code: R, actions: [{id: 1, kind: item}]}]\n",
			wantMsg: "discount quantity per coupon must be positive",
		},
		{
			name:    "unknown usage type",
			doc:     "store: S\ncurrency: USD\npromotions: [{id: 1, code: R, usage_type: DAILY}]\n",
			wantMsg: `unknown usage type "DAILY"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestScenario_SKUCodes(t *testing.T) {
	s := loadScenario(t, "testdata/spring.yaml")
	assert.Equal(t, []string{"BOARD", "WAX", "KIT", "A", "B"}, s.SKUCodes())
}

func TestBreakdown_Encode(t *testing.T) {
	b := evaluate(t, loadScenario(t, "testdata/spring.yaml"))

	var e jx.Encoder
	b.Encode(&e)

	var doc struct {
		Cart     string `json:"cart"`
		Currency string `json:"currency"`
		Items    []struct {
			GUID  string `json:"guid"`
			Price string `json:"price"`
		} `json:"items"`
		Totals          map[string]string `json:"totals"`
		DiscountRecords []struct {
			Rule       int64  `json:"rule"`
			Kind       string `json:"kind"`
			Superseded bool   `json:"superseded"`
		} `json:"discount_records"`
		Codes         []string `json:"codes"`
		RejectedCodes []string `json:"rejected_codes"`
		CouponUses    []struct {
			Rule int64 `json:"rule"`
			Uses int   `json:"uses"`
		} `json:"coupon_uses"`
	}
	require.NoError(t, json.Unmarshal(e.Bytes(), &doc), "output: %s", e.String())

	assert.Equal(t, "quote-1", doc.Cart)
	assert.Equal(t, "USD", doc.Currency)
	assert.Len(t, doc.Items, 4)
	assert.Equal(t, "204.00", doc.Totals["total"])
	assert.Equal(t, "6.00", doc.Totals["shipping"])
	assert.Equal(t, "4.00", doc.Totals["shipping_discount"])
	assert.Len(t, doc.DiscountRecords, 4)
	assert.Equal(t, []string{"BOGUS"}, doc.RejectedCodes)
	require.Len(t, doc.CouponUses, 1)
	assert.Equal(t, 2, doc.CouponUses[0].Uses)
}
