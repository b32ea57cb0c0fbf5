// Package catalog describes the SKU facts the pricing engine needs.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested SKU does not exist.
var ErrNotFound = errors.New("sku not found")

// SKU holds the catalog facts a cart consults when pricing an item.
type SKU struct {
	Code string
	// Shippable items require a shipping option to be selected.
	Shippable bool
	// Bundle SKUs are priced as a whole and apportioned to their constituents.
	Bundle bool
	// Discountable SKUs accept non-coupon item discounts.
	Discountable bool
	Weight       decimal.Decimal
}

// Lookup resolves SKU codes from an already-loaded catalog.
type Lookup interface {
	SKU(code string) (SKU, bool)
}

// Repository loads SKUs from storage.
type Repository interface {
	GetByCodes(ctx context.Context, codes []string) ([]SKU, error)
}

// MapLookup is an in-memory Lookup.
type MapLookup map[string]SKU

var _ Lookup = MapLookup(nil)

// NewMapLookup indexes skus by code.
func NewMapLookup(skus ...SKU) MapLookup {
	m := make(MapLookup, len(skus))
	for _, s := range skus {
		m[s.Code] = s
	}
	return m
}

// SKU returns the SKU stored under code.
func (m MapLookup) SKU(code string) (SKU, bool) {
	s, ok := m[code]
	return s, ok
}

// Load fetches codes from repo into a MapLookup. Codes missing from the
// repository fail with ErrNotFound.
func Load(ctx context.Context, repo Repository, codes []string) (MapLookup, error) {
	skus, err := repo.GetByCodes(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "get skus")
	}
	m := NewMapLookup(skus...)
	for _, code := range codes {
		if _, ok := m[code]; !ok {
			return nil, errors.Wrapf(ErrNotFound, "sku %q", code)
		}
	}
	return m, nil
}
