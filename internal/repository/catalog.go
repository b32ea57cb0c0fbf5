package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
)

const (
	getSKUsByCodesSQL = `SELECT code, shippable, bundle, discountable, weight
		FROM skus WHERE code = ANY($1)`

	upsertSKUSQL = `INSERT INTO skus (code, shippable, bundle, discountable, weight)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			shippable = EXCLUDED.shippable,
			bundle = EXCLUDED.bundle,
			discountable = EXCLUDED.discountable,
			weight = EXCLUDED.weight`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByCodes returns the SKUs matching any of the given codes. Unknown codes
// are skipped.
func (r *CatalogRepository) GetByCodes(ctx context.Context, codes []string) ([]catalog.SKU, error) {
	rows, err := r.pool.Query(ctx, getSKUsByCodesSQL, codes)
	if err != nil {
		return nil, fmt.Errorf("getting skus by codes: %w", err)
	}
	skus, err := pgx.CollectRows(rows, scanSKU)
	if err != nil {
		return nil, fmt.Errorf("getting skus by codes: %w", err)
	}
	return skus, nil
}

// Upsert creates or replaces a SKU.
func (r *CatalogRepository) Upsert(ctx context.Context, s catalog.SKU) error {
	_, err := r.pool.Exec(ctx, upsertSKUSQL, s.Code, s.Shippable, s.Bundle, s.Discountable, s.Weight)
	if err != nil {
		return fmt.Errorf("upserting sku %q: %w", s.Code, err)
	}
	return nil
}

func scanSKU(row pgx.CollectableRow) (catalog.SKU, error) {
	var s catalog.SKU
	err := row.Scan(&s.Code, &s.Shippable, &s.Bundle, &s.Discountable, &s.Weight)
	return s, err
}
