// Package giftcert describes gift certificates redeemable against a cart.
package giftcert

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrNotFound is returned when a gift certificate code is unknown.
var ErrNotFound = errors.New("gift certificate not found")

// GiftCertificate identifies a certificate and the store and currency it was
// issued in.
type GiftCertificate struct {
	Code      string
	GUID      string
	StoreCode string
	Currency  currency.Unit
}

// BalanceLookup returns the remaining balance of a certificate.
type BalanceLookup interface {
	Balance(gc GiftCertificate) decimal.Decimal
}

// Account is a stored certificate with its remaining balance.
type Account struct {
	Certificate GiftCertificate
	Balance     decimal.Decimal
}

// Repository loads certificates from storage.
type Repository interface {
	GetByCodes(ctx context.Context, codes []string) ([]Account, error)
}

// Balances is an in-memory BalanceLookup keyed by certificate code.
type Balances map[string]decimal.Decimal

var _ BalanceLookup = Balances(nil)

// Balance returns the balance stored for gc.Code, or zero.
func (b Balances) Balance(gc GiftCertificate) decimal.Decimal {
	if v, ok := b[gc.Code]; ok {
		return v
	}
	return decimal.Zero
}

// Load fetches the certificates for codes and returns them together with a
// balance index. Unknown codes fail with ErrNotFound.
func Load(ctx context.Context, repo Repository, codes []string) ([]GiftCertificate, Balances, error) {
	accounts, err := repo.GetByCodes(ctx, codes)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get gift certificates")
	}
	byCode := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byCode[a.Certificate.Code] = a
	}

	certs := make([]GiftCertificate, 0, len(codes))
	balances := make(Balances, len(codes))
	for _, code := range codes {
		a, ok := byCode[code]
		if !ok {
			return nil, nil, errors.Wrapf(ErrNotFound, "gift certificate %q", code)
		}
		certs = append(certs, a.Certificate)
		balances[code] = a.Balance
	}
	return certs, balances, nil
}
