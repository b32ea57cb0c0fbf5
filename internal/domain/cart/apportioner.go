package cart

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/apportion"
	"github.com/xenking/kart-pricing/internal/money"
)

// Apportioner splits the price of a bundle across its leaf items.
type Apportioner interface {
	ApportionBundle(bundle *Item, price money.Money, leaves []*Item) ([]PricedLeaf, error)
}

// ProRataApportioner splits bundle prices in proportion to the extended
// lowest unit price of each leaf.
type ProRataApportioner struct{}

// ApportionBundle implements Apportioner.
func (ProRataApportioner) ApportionBundle(_ *Item, price money.Money, leaves []*Item) ([]PricedLeaf, error) {
	lines := make([]apportion.Line, len(leaves))
	for i, it := range leaves {
		unit, _ := it.LowestUnitPrice()
		lines[i] = apportion.Line{
			Key:     strconv.FormatInt(int64(it.id), 10),
			SortKey: it.sku.Code,
			Amount:  unit.Mul(decimal.NewFromInt(int64(it.quantity))),
		}
	}
	parts, err := apportion.ProRata(price.Amount, lines, money.FractionDigits(price.Currency))
	if err != nil {
		return nil, err
	}
	out := make([]PricedLeaf, len(leaves))
	for i, it := range leaves {
		out[i] = PricedLeaf{Item: it, Price: money.New(parts[i], price.Currency)}
	}
	return out, nil
}
