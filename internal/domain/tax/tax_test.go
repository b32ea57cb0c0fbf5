package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHandlingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    HandlingMode
		wantErr bool
	}{
		{in: "", want: UseSiteDefaults},
		{in: "site_defaults", want: UseSiteDefaults},
		{in: "INCLUDE", want: Include},
		{in: "exclude", want: Exclude},
		{in: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHandlingMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResult_ItemTax(t *testing.T) {
	r := Result{ItemTaxes: map[string]decimal.Decimal{"a": decimal.RequireFromString("1.30")}}

	assert.Equal(t, "1.3", r.ItemTax("a").String())
	assert.True(t, r.ItemTax("b").IsZero())
	assert.True(t, Result{}.ItemTax("a").IsZero())
}
