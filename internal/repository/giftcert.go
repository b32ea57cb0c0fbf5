package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/money"
)

const (
	getGiftCertificatesByCodesSQL = `SELECT code, guid, store_code, currency, balance
		FROM gift_certificates WHERE code = ANY($1)`

	upsertGiftCertificateSQL = `INSERT INTO gift_certificates (code, guid, store_code, currency, balance)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			store_code = EXCLUDED.store_code,
			currency = EXCLUDED.currency,
			balance = EXCLUDED.balance`
)

var _ giftcert.Repository = (*GiftCertificateRepository)(nil)

// GiftCertificateRepository implements giftcert.Repository backed by
// PostgreSQL.
type GiftCertificateRepository struct {
	pool *pgxpool.Pool
}

// NewGiftCertificateRepository returns a GiftCertificateRepository that uses
// the given pool.
func NewGiftCertificateRepository(pool *pgxpool.Pool) *GiftCertificateRepository {
	return &GiftCertificateRepository{pool: pool}
}

// GetByCodes returns the certificates matching any of the given codes with
// their balances.
func (r *GiftCertificateRepository) GetByCodes(ctx context.Context, codes []string) ([]giftcert.Account, error) {
	rows, err := r.pool.Query(ctx, getGiftCertificatesByCodesSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("getting gift certificates by codes: %w", err)
	}
	accounts, err := pgx.CollectRows(rows, scanGiftCertificate)
	if err != nil {
		return nil, fmt.Errorf("getting gift certificates by codes: %w", err)
	}
	return accounts, nil
}

// Upsert creates or replaces a certificate and its balance.
func (r *GiftCertificateRepository) Upsert(ctx context.Context, a giftcert.Account) error {
	gc := a.Certificate
	_, err := r.pool.Exec(ctx, upsertGiftCertificateSQL,
		gc.Code, gc.GUID, gc.StoreCode, gc.Currency.String(), a.Balance,
	)
	if err != nil {
		return fmt.Errorf("upserting gift certificate %q: %w", gc.Code, err)
	}
	return nil
}

func scanGiftCertificate(row pgx.CollectableRow) (giftcert.Account, error) {
	var (
		a   giftcert.Account
		cur string
	)
	if err := row.Scan(&a.Certificate.Code, &a.Certificate.GUID, &a.Certificate.StoreCode, &cur, &a.Balance); err != nil {
		return a, err
	}
	unit, err := money.ParseCurrency(cur)
	if err != nil {
		return a, fmt.Errorf("gift certificate %q: %w", a.Certificate.Code, err)
	}
	a.Certificate.Currency = unit
	return a, nil
}
