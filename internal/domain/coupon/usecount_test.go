package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/kart-pricing/internal/domain/promotion"
)

type selectedShipping string

func (s selectedShipping) SelectedShippingOption() string { return string(s) }

func TestUseCount(t *testing.T) {
	records := promotion.NewContainer()
	items := promotion.NewItemDiscountRecord(1, 10, "line-1", decimal.NewFromInt(6), 5)
	if err := records.AddDiscountRecord(items); err != nil {
		t.Fatal(err)
	}
	if err := records.AddDiscountRecord(promotion.NewSubtotalDiscountRecord(1, 11, decimal.NewFromInt(5))); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		actions []promotion.Action
		want    int
	}{
		{
			name: "largest requirement wins",
			actions: []promotion.Action{
				{ID: 10, RuleID: 1, Kind: promotion.KindItem, DiscountQuantityPerCoupon: 2},
				{ID: 11, RuleID: 1, Kind: promotion.KindSubtotal},
			},
			want: 3,
		},
		{
			name: "single per cart",
			actions: []promotion.Action{
				{ID: 10, RuleID: 1, Kind: promotion.KindItem, SinglePerCart: true},
			},
			want: 1,
		},
		{
			name: "action without record counts once",
			actions: []promotion.Action{
				{ID: 99, RuleID: 1, Kind: promotion.KindSubtotal},
			},
			want: 1,
		},
		{
			name: "no actions",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &Rule{ID: 1, Code: "SPRING", Actions: tt.actions}
			assert.Equal(t, tt.want, UseCount(rule, records, selectedShipping("")))
		})
	}
}
