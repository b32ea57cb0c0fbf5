package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestFractionDigits(t *testing.T) {
	tests := []struct {
		name string
		cur  currency.Unit
		want int32
	}{
		{name: "USD", cur: currency.USD, want: 2},
		{name: "EUR", cur: currency.EUR, want: 2},
		{name: "JPY", cur: currency.JPY, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FractionDigits(tt.cur))
		})
	}
}

func TestRounding(t *testing.T) {
	m := New(d("10.125"), currency.USD)

	assert.Equal(t, "10.13", m.RoundHalfUp().Amount.StringFixed(2))
	assert.Equal(t, "10.12", m.RoundHalfEven().Amount.StringFixed(2))

	yen := New(d("100.5"), currency.JPY)
	assert.True(t, d("101").Equal(yen.RoundHalfUp().Amount))
	assert.True(t, d("100").Equal(yen.RoundHalfEven().Amount))
}

func TestDivRound(t *testing.T) {
	got := DivRound(d("10"), d("3"))
	assert.Equal(t, "3.3333333333", got.String())

	got = DivRound(d("2"), d("3"))
	assert.Equal(t, "0.6666666667", got.String())
}

func TestArithmetic(t *testing.T) {
	usd := New(d("5.00"), currency.USD)
	eur := New(d("5.00"), currency.EUR)

	sum, err := usd.Add(New(d("2.50"), currency.USD))
	require.NoError(t, err)
	assert.True(t, d("7.50").Equal(sum.Amount))

	_, err = usd.Add(eur)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = usd.Sub(eur)
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	diff, err := usd.Sub(New(d("7.25"), currency.USD))
	require.NoError(t, err)
	floored := diff.FloorZero()
	assert.True(t, floored.IsZero())
	assert.Equal(t, int32(-2), floored.Amount.Exponent())
}

func TestParse(t *testing.T) {
	m, err := Parse("19.99", "CAD")
	require.NoError(t, err)
	assert.Equal(t, "19.99 CAD", m.String())

	_, err = Parse("1", "NOPE")
	require.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = Parse("abc", "USD")
	require.Error(t, err)
}

func TestZero(t *testing.T) {
	z := Zero(currency.USD)
	assert.True(t, z.IsZero())
	assert.Equal(t, "0.00 USD", z.String())
	assert.True(t, z.Equal(New(decimal.Zero, currency.USD)))
}
