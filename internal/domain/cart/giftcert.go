package cart

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/money"
)

// ApplyGiftCertificate adds a certificate to the cart. Certificates issued
// by another store and nil certificates are ignored; applying the same code
// twice is a no-op.
func (c *Cart) ApplyGiftCertificate(gc *giftcert.GiftCertificate) error {
	if gc == nil {
		return nil
	}
	if gc.StoreCode != c.storeCode {
		c.lg.Debug("Ignoring gift certificate from another store",
			zap.String("code", gc.Code),
			zap.String("store", gc.StoreCode),
		)
		return nil
	}
	if gc.Currency != c.currency {
		return errors.Wrapf(ErrGiftCertificateCurrencyMismatch, "%q: %s, cart is %s", gc.Code, gc.Currency, c.currency)
	}
	if !c.balances.Balance(*gc).IsPositive() {
		return errors.Wrapf(ErrGiftCertificateZeroBalance, "%q", gc.Code)
	}
	if slices.ContainsFunc(c.giftCerts, func(g giftcert.GiftCertificate) bool { return g.Code == gc.Code }) {
		return nil
	}
	c.giftCerts = append(c.giftCerts, *gc)
	c.recalculateGiftCertificates()
	return nil
}

// RemoveGiftCertificate removes the certificate with the given code.
func (c *Cart) RemoveGiftCertificate(code string) {
	c.giftCerts = slices.DeleteFunc(c.giftCerts, func(g giftcert.GiftCertificate) bool { return g.Code == code })
	c.recalculateGiftCertificates()
}

// GiftCertificates returns the applied certificates in the order applied.
func (c *Cart) GiftCertificates() []giftcert.GiftCertificate {
	return slices.Clone(c.giftCerts)
}

// AppliedGiftCertificateTotal returns the sum of the applied certificates'
// balances.
func (c *Cart) AppliedGiftCertificateTotal() money.Money {
	return money.New(c.giftCertsTotal, c.currency)
}

func (c *Cart) recalculateGiftCertificates() {
	total := decimal.Zero
	for _, gc := range c.giftCerts {
		total = total.Add(c.balances.Balance(gc))
	}
	c.giftCertsTotal = total
}
