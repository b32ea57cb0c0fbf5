// Package apportion distributes an amount across weighted lines so that the
// rounded parts add up to the amount exactly.
//
// ProRata splits a price by weight and moves any rounding drift onto the
// largest part:
//
//	part_i = round(total * weight_i / sum(weights))
//
// Discount splits a discount across priced lines and corrects the drift on
// lines ordered by sort key, never pushing a line above its price or below
// zero.
package apportion

import (
	"cmp"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pricing/internal/money"
)

var (
	// ErrNoLines is returned when there is nothing to allocate to.
	ErrNoLines = errors.New("no lines to apportion")
	// ErrNegativeAmount is returned for negative totals or weights.
	ErrNegativeAmount = errors.New("amount cannot be negative")
	// ErrDiscountExceedsTotal is returned when a discount is larger than the
	// lines it is apportioned to.
	ErrDiscountExceedsTotal = errors.New("discount exceeds apportioned total")
)

// Line is one participant of an allocation.
type Line struct {
	// Key identifies the line in results, typically a line item GUID.
	Key string
	// SortKey orders lines for rounding correction, typically a SKU code.
	SortKey string
	// Amount is the line's weight, and for Discount also its cap.
	Amount decimal.Decimal
}

// ProRata splits total across lines in proportion to their amounts, rounding
// each part half up to places digits. Parts are returned in line order. When
// every line weighs zero the total goes to the first line.
func ProRata(total decimal.Decimal, lines []Line, places int32) ([]decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if total.IsNegative() {
		return nil, errors.Wrapf(ErrNegativeAmount, "total %s", total)
	}

	sum, err := sumLines(lines)
	if err != nil {
		return nil, err
	}

	parts := make([]decimal.Decimal, len(lines))
	if sum.IsZero() {
		for i := range parts {
			parts[i] = decimal.Zero
		}
		parts[0] = total.Round(places)
		return parts, nil
	}

	allocated := decimal.Zero
	for i, l := range lines {
		parts[i] = portion(total, l.Amount, sum, places)
		allocated = allocated.Add(parts[i])
	}

	// Fix rounding: the largest part absorbs the drift.
	if diff := total.Round(places).Sub(allocated); !diff.IsZero() {
		maxIdx := 0
		for i := range parts {
			if parts[i].GreaterThan(parts[maxIdx]) {
				maxIdx = i
			}
		}
		parts[maxIdx] = parts[maxIdx].Add(diff)
	}
	return parts, nil
}

// Discount splits discount across lines in proportion to their amounts and
// returns the part for each line key. Rounding drift is corrected on lines
// ordered by SortKey descending: a positive correction is limited to what
// the line can still absorb, a negative one to the part already assigned.
func Discount(discount decimal.Decimal, lines []Line, places int32) (map[string]decimal.Decimal, error) {
	if discount.IsNegative() {
		return nil, errors.Wrapf(ErrNegativeAmount, "discount %s", discount)
	}
	sum, err := sumLines(lines)
	if err != nil {
		return nil, err
	}
	if discount.GreaterThan(sum) {
		return nil, errors.Wrapf(ErrDiscountExceedsTotal, "discount %s, total %s", discount, sum)
	}

	parts := make(map[string]decimal.Decimal, len(lines))
	zero := decimal.New(0, -places)
	allocated := decimal.Zero
	for _, l := range lines {
		p := zero
		if !sum.IsZero() {
			p = portion(discount, l.Amount, sum, places)
		}
		parts[l.Key] = p
		allocated = allocated.Add(p)
	}

	drift := discount.Round(places).Sub(allocated)
	if drift.IsZero() {
		return parts, nil
	}

	ordered := slices.Clone(lines)
	slices.SortStableFunc(ordered, func(a, b Line) int {
		if c := cmp.Compare(b.SortKey, a.SortKey); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})

	for _, l := range ordered {
		if drift.IsZero() {
			break
		}
		p := parts[l.Key]
		adj := errorAdjustment(l.Amount, p, drift)
		parts[l.Key] = p.Add(adj)
		drift = drift.Sub(adj)
	}
	return parts, nil
}

// errorAdjustment returns how much of drift a line with the given price and
// current portion can take.
func errorAdjustment(price, portion, drift decimal.Decimal) decimal.Decimal {
	if drift.IsPositive() {
		room := price.Sub(portion)
		if !room.IsPositive() {
			return decimal.Zero
		}
		return decimal.Min(drift, room)
	}
	if !portion.IsPositive() {
		return decimal.Zero
	}
	return decimal.Max(drift, portion.Neg())
}

func portion(total, weight, sum decimal.Decimal, places int32) decimal.Decimal {
	return money.DivRound(total.Mul(weight), sum).Round(places)
}

func sumLines(lines []Line) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Amount.IsNegative() {
			return decimal.Zero, errors.Wrapf(ErrNegativeAmount, "line %q", l.Key)
		}
		sum = sum.Add(l.Amount)
	}
	return sum, nil
}
