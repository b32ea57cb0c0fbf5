package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/money"
)

const testStore = "SNOWBOARDS"

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func usd(v string) money.Money { return money.New(d(v), currency.USD) }

var testSKUs = catalog.NewMapLookup(
	catalog.SKU{Code: "BOARD", Shippable: true, Discountable: true, Weight: d("3.5")},
	catalog.SKU{Code: "BINDING", Shippable: true, Discountable: true, Weight: d("1.25")},
	catalog.SKU{Code: "WAX", Shippable: true, Discountable: false, Weight: d("0.2")},
	catalog.SKU{Code: "EBOOK", Discountable: true},
	catalog.SKU{Code: "KIT", Bundle: true, Shippable: true, Discountable: true},
	catalog.SKU{Code: "A", Shippable: true, Discountable: true},
	catalog.SKU{Code: "B", Shippable: true, Discountable: true},
)

func newTestCart(t *testing.T, mods ...func(*Config)) *Cart {
	t.Helper()
	cfg := Config{
		GUID:             "cart-1",
		StoreCode:        testStore,
		Currency:         currency.USD,
		SKUs:             testSKUs,
		GiftCertificates: giftcert.Balances{},
	}
	for _, m := range mods {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func addItem(t *testing.T, c *Cart, sku string, qty int, price string) *Item {
	t.Helper()
	id, err := c.AddItem(ItemSpec{SKUCode: sku, Quantity: qty, Prices: ListPrice(d(price))})
	require.NoError(t, err)
	it, ok := c.Item(id)
	require.True(t, ok)
	return it
}

func addChild(t *testing.T, c *Cart, parent *Item, sku string, qty int, price string) *Item {
	t.Helper()
	id, err := c.AddChild(parent.ID(), ItemSpec{SKUCode: sku, Quantity: qty, Prices: ListPrice(d(price))})
	require.NoError(t, err)
	it, ok := c.Item(id)
	require.True(t, ok)
	return it
}

func requireAmount(t *testing.T, want string, got money.Money) {
	t.Helper()
	require.True(t, d(want).Equal(got.Amount), "expected %s, got %s", want, got.Amount)
}
