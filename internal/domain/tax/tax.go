// Package tax defines how the cart consumes externally computed taxes.
package tax

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// HandlingMode selects whether a price calculation adds, removes or ignores tax.
type HandlingMode int

const (
	// UseSiteDefaults leaves prices as the store presents them.
	UseSiteDefaults HandlingMode = iota
	// Include forces tax into the price.
	Include
	// Exclude strips tax from the price.
	Exclude
)

func (m HandlingMode) String() string {
	switch m {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	default:
		return "site_defaults"
	}
}

// ParseHandlingMode parses "include", "exclude" or "site_defaults". The empty
// string means site defaults.
func ParseHandlingMode(s string) (HandlingMode, error) {
	switch strings.ToLower(s) {
	case "", "site_defaults", "use_site_defaults":
		return UseSiteDefaults, nil
	case "include":
		return Include, nil
	case "exclude":
		return Exclude, nil
	default:
		return UseSiteDefaults, errors.Errorf("unknown tax handling mode: %q", s)
	}
}

// Result is the outcome of a tax calculation for a cart.
type Result struct {
	// TaxInclusive is true when item prices already contain tax.
	TaxInclusive bool
	TotalTaxes   decimal.Decimal
	// ItemTaxes maps line item GUIDs to the total tax for the line.
	ItemTaxes map[string]decimal.Decimal
}

// ItemTax returns the tax for the line item, or zero.
func (r Result) ItemTax(itemGUID string) decimal.Decimal {
	if v, ok := r.ItemTaxes[itemGUID]; ok {
		return v
	}
	return decimal.Zero
}
