package giftcert

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

type mockRepo struct {
	accounts []Account
}

func (m *mockRepo) GetByCodes(_ context.Context, _ []string) ([]Account, error) {
	return m.accounts, nil
}

func TestLoad(t *testing.T) {
	repo := &mockRepo{accounts: []Account{
		{Certificate: GiftCertificate{Code: "GC-1", StoreCode: "STORE", Currency: currency.USD}, Balance: decimal.NewFromInt(25)},
		{Certificate: GiftCertificate{Code: "GC-2", StoreCode: "STORE", Currency: currency.USD}, Balance: decimal.NewFromInt(5)},
	}}

	certs, balances, err := Load(context.Background(), repo, []string{"GC-2", "GC-1"})
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "GC-2", certs[0].Code)
	assert.True(t, decimal.NewFromInt(25).Equal(balances.Balance(certs[1])))
	assert.True(t, balances.Balance(GiftCertificate{Code: "GC-3"}).IsZero())

	_, _, err = Load(context.Background(), repo, []string{"GC-3"})
	require.ErrorIs(t, err, ErrNotFound)
}
