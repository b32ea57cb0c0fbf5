package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/promotion"
	"github.com/xenking/kart-pricing/internal/money"
)

func shippingCart(t *testing.T) *Cart {
	t.Helper()
	c := newTestCart(t)
	addItem(t, c, "BOARD", 1, "100.00")
	require.NoError(t, c.SetShippingOptions(
		ShippingOption{Code: "STD", ListPrice: usd("10.00")},
		ShippingOption{Code: "EXP", ListPrice: usd("25.00")},
	))
	return c
}

func liveShippingRecords(c *Cart, code string) []promotion.DiscountRecord {
	var out []promotion.DiscountRecord
	for _, r := range c.PromotionRecordContainer().AllDiscountRecords() {
		ship, ok := r.(*promotion.ShippingDiscountRecord)
		if ok && !r.Superseded() && ship.ShippingOptionCode() == code {
			out = append(out, r)
		}
	}
	return out
}

func TestCart_SetShippingDiscountIfLower_KeepsMax(t *testing.T) {
	c := shippingCart(t)

	require.NoError(t, c.SetShippingDiscountIfLower("STD", 1, 1, d("3.00")))
	require.NoError(t, c.SetShippingDiscountIfLower("STD", 2, 1, d("5.00")))
	require.NoError(t, c.SetShippingDiscountIfLower("STD", 3, 1, d("4.00")))
	require.NoError(t, c.SetShippingDiscountIfLower("EXP", 4, 1, d("2.00")))

	live := liveShippingRecords(c, "STD")
	require.Len(t, live, 1)
	assert.Equal(t, promotion.Key{RuleID: 2, ActionID: 1}, live[0].Key())
	assert.True(t, d("5.00").Equal(live[0].DiscountAmount()))

	for _, key := range []promotion.Key{{RuleID: 1, ActionID: 1}, {RuleID: 3, ActionID: 1}} {
		r, ok := c.PromotionRecordContainer().DiscountRecord(key.RuleID, key.ActionID)
		require.True(t, ok)
		assert.True(t, r.Superseded(), "rule %d must be superseded", key.RuleID)
	}
	assert.Len(t, liveShippingRecords(c, "EXP"), 1, "other options are unaffected")

	snap, err := c.ShippingPricingSnapshot("STD")
	require.NoError(t, err)
	requireAmount(t, "10.00", snap.ListPrice)
	requireAmount(t, "5.00", snap.DiscountAmount)
	requireAmount(t, "5.00", snap.PromotedPrice)

	assert.Equal(t, []int64{2}, c.PromotionRecordContainer().AppliedRulesByShippingOption("STD"))
}

func TestCart_SetShippingDiscountIfLower_Idempotent(t *testing.T) {
	c := shippingCart(t)

	require.NoError(t, c.SetShippingDiscountIfLower("STD", 1, 1, d("3.00")))
	require.NoError(t, c.SetShippingDiscountIfLower("STD", 2, 1, d("5.00")))
	before := c.PromotionRecordContainer().AllDiscountRecords()

	require.NoError(t, c.SetShippingDiscountIfLower("STD", 2, 1, d("5.00")))
	require.NoError(t, c.SetShippingDiscountIfLower("STD", 1, 1, d("3.00")))

	after := c.PromotionRecordContainer().AllDiscountRecords()
	require.Len(t, after, len(before))
	for i := range before {
		assert.True(t, promotion.SameFacts(before[i], after[i]))
		assert.Equal(t, before[i].Superseded(), after[i].Superseded())
	}
}

func TestCart_SetShippingDiscountIfLower_CreatesPricing(t *testing.T) {
	c := newTestCart(t)
	require.NoError(t, c.SetShippingDiscountIfLower("PICKUP", 1, 1, d("2.00")))

	_, err := c.ShippingPricingSnapshot("PICKUP")
	require.ErrorIs(t, err, ErrShippingPricingUnavailable, "no list price yet")

	require.NoError(t, c.SetShippingListPrice("PICKUP", usd("1.50")))
	snap, err := c.ShippingPricingSnapshot("PICKUP")
	require.NoError(t, err)
	assert.True(t, snap.PromotedPrice.IsZero(), "promoted price floors at zero")
	assert.False(t, snap.PromotedPrice.Amount.IsNegative())
}

func TestCart_SetShippingDiscountIfLower_Errors(t *testing.T) {
	c := shippingCart(t)

	err := c.SetShippingDiscountIfLower("STD", 1, 1, d("-1"))
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, c.PromotionRecordContainer().Len())

	require.NoError(t, c.SetSubtotalDiscount(d("1.00"), 7, 1))
	err = c.SetShippingDiscountIfLower("STD", 7, 1, d("1.00"))
	require.ErrorIs(t, err, promotion.ErrRecordKindMismatch)
	snap, err := c.ShippingPricingSnapshot("STD")
	require.NoError(t, err)
	assert.True(t, snap.DiscountAmount.IsZero(), "rejected call must not touch pricing")
}

func TestCart_ShippingCost(t *testing.T) {
	t.Run("selected option promoted price", func(t *testing.T) {
		c := shippingCart(t)
		c.SelectShippingOption("STD")
		require.NoError(t, c.SetShippingDiscountIfLower("STD", 1, 1, d("4.00")))

		cost, err := c.ShippingCost()
		require.NoError(t, err)
		requireAmount(t, "6.00", cost)

		before, err := c.BeforeDiscountShippingCost()
		require.NoError(t, err)
		requireAmount(t, "10.00", before)
		requireAmount(t, "4.00", c.ShippingDiscount())
	})
	t.Run("no option selected", func(t *testing.T) {
		c := shippingCart(t)
		_, err := c.ShippingCost()
		require.ErrorIs(t, err, ErrNoShippingOptionSelected)
		require.ErrorIs(t, err, ErrInvalidState)
	})
	t.Run("nothing to ship", func(t *testing.T) {
		c := newTestCart(t)
		addItem(t, c, "EBOOK", 1, "9.99")
		require.NoError(t, c.SetShippingOptions(ShippingOption{Code: "STD", ListPrice: usd("10.00")}))

		cost, err := c.ShippingCost()
		require.NoError(t, err)
		assert.True(t, cost.IsZero())
	})
	t.Run("no options available", func(t *testing.T) {
		c := newTestCart(t)
		addItem(t, c, "BOARD", 1, "100.00")

		cost, err := c.ShippingCost()
		require.NoError(t, err)
		assert.True(t, cost.IsZero())
	})
	t.Run("override wins", func(t *testing.T) {
		c := shippingCart(t)
		require.NoError(t, c.SetShippingCostOverride(d("1.00")))

		cost, err := c.ShippingCost()
		require.NoError(t, err)
		requireAmount(t, "1.00", cost)

		c.ClearShippingCostOverride()
		_, err = c.ShippingCost()
		require.ErrorIs(t, err, ErrNoShippingOptionSelected)
	})
	t.Run("selected option without pricing", func(t *testing.T) {
		c := shippingCart(t)
		c.SelectShippingOption("NOPE")
		_, err := c.ShippingCost()
		require.ErrorIs(t, err, ErrShippingPricingUnavailable)
	})
}

func TestCart_ShippingValidation(t *testing.T) {
	c := newTestCart(t)

	err := c.SetShippingListPrice("STD", money.New(d("10.00"), currency.EUR))
	require.ErrorIs(t, err, ErrCurrencyMismatch)
	require.ErrorIs(t, err, ErrInvalidArgument)

	err = c.SetShippingListPrice("STD", usd("-1.00"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	err = c.SetShippingCostOverride(d("-1.00"))
	require.ErrorIs(t, err, ErrInvalidArgument)

	err = c.SetShippingOptions(
		ShippingOption{Code: "STD", ListPrice: usd("10.00")},
		ShippingOption{Code: "EU", ListPrice: money.New(d("10.00"), currency.EUR)},
	)
	require.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.Empty(t, c.ShippingOptions(), "rejected options leave no partial state")
}
