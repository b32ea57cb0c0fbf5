// Package money provides a currency-aware decimal amount.
package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// CalculationScale is the number of fractional digits kept by intermediate
// divisions before an amount is rounded to its currency's digits.
const CalculationScale int32 = 10

var (
	// ErrCurrencyMismatch is returned when two amounts of different
	// currencies are combined.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrUnknownCurrency is returned for codes that are not ISO 4217.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// Money is a decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// New returns an amount in the given currency.
func New(amount decimal.Decimal, cur currency.Unit) Money {
	return Money{Amount: amount, Currency: cur}
}

// Zero returns a zero amount scaled to the currency's default digits.
func Zero(cur currency.Unit) Money {
	return Money{Amount: decimal.New(0, -FractionDigits(cur)), Currency: cur}
}

// Parse builds Money from a decimal string and an ISO 4217 code.
func Parse(amount, code string) (Money, error) {
	cur, err := ParseCurrency(code)
	if err != nil {
		return Money{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, errors.Wrapf(err, "parse amount %q", amount)
	}
	return New(d, cur), nil
}

// ParseCurrency resolves an ISO 4217 code.
func ParseCurrency(code string) (currency.Unit, error) {
	cur, err := currency.ParseISO(code)
	if err != nil {
		return currency.Unit{}, errors.Wrapf(ErrUnknownCurrency, "%q", code)
	}
	return cur, nil
}

// FractionDigits returns the default number of fractional digits for cur.
func FractionDigits(cur currency.Unit) int32 {
	scale, _ := currency.Standard.Rounding(cur)
	return int32(scale)
}

// DivRound divides a by b keeping CalculationScale digits, rounding half up.
func DivRound(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, CalculationScale)
}

// RoundHalfUp rounds to the currency's default digits, half away from zero.
func (m Money) RoundHalfUp() Money {
	return Money{Amount: m.Amount.Round(FractionDigits(m.Currency)), Currency: m.Currency}
}

// RoundHalfEven rounds to the currency's default digits using banker's rounding.
func (m Money) RoundHalfEven() Money {
	return Money{Amount: m.Amount.RoundBank(FractionDigits(m.Currency)), Currency: m.Currency}
}

// SameCurrency reports whether o is in the same currency as m.
func (m Money) SameCurrency(o Money) bool {
	return m.Currency == o.Currency
}

// Add returns m+o.
func (m Money) Add(o Money) (Money, error) {
	if !m.SameCurrency(o) {
		return Money{}, errors.Wrapf(ErrCurrencyMismatch, "%s + %s", m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

// Sub returns m-o.
func (m Money) Sub(o Money) (Money, error) {
	if !m.SameCurrency(o) {
		return Money{}, errors.Wrapf(ErrCurrencyMismatch, "%s - %s", m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

// FloorZero returns m, or a zero amount of the same scale when m is negative.
func (m Money) FloorZero() Money {
	if m.Amount.IsNegative() {
		return Money{Amount: decimal.New(0, m.Amount.Exponent()), Currency: m.Currency}
	}
	return m
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// Equal reports whether both currency and numeric value match.
func (m Money) Equal(o Money) bool {
	return m.SameCurrency(o) && m.Amount.Equal(o.Amount)
}

// String formats the amount at the currency's default digits, e.g. "10.50 USD".
func (m Money) String() string {
	return m.Amount.StringFixed(FractionDigits(m.Currency)) + " " + m.Currency.String()
}
