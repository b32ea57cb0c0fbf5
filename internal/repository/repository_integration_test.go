//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pg.Terminate(context.Background()) }()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port())
	pool, err = NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(pool)

	require.NoError(t, repo.Upsert(ctx, catalog.SKU{Code: "BOARD", Shippable: true, Discountable: true, Weight: decimal.RequireFromString("3.5")}))
	require.NoError(t, repo.Upsert(ctx, catalog.SKU{Code: "KIT", Bundle: true}))

	skus, err := repo.GetByCodes(ctx, []string{"BOARD", "KIT", "NOPE"})
	require.NoError(t, err)
	require.Len(t, skus, 2)

	lookup, err := catalog.Load(ctx, repo, []string{"BOARD", "KIT"})
	require.NoError(t, err)
	board, ok := lookup.SKU("BOARD")
	require.True(t, ok)
	assert.True(t, board.Shippable)
	assert.True(t, decimal.RequireFromString("3.5").Equal(board.Weight))

	_, err = catalog.Load(ctx, repo, []string{"NOPE"})
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestGiftCertificateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGiftCertificateRepository(pool)

	require.NoError(t, repo.Upsert(ctx, giftcert.Account{
		Certificate: giftcert.GiftCertificate{Code: "GC-1", GUID: "gc-guid-1", StoreCode: "SNOWBOARDS", Currency: currency.USD},
		Balance:     decimal.RequireFromString("25.00"),
	}))

	certs, balances, err := giftcert.Load(ctx, repo, []string{"GC-1"})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, currency.USD, certs[0].Currency)
	assert.True(t, decimal.RequireFromString("25").Equal(balances.Balance(certs[0])))
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCouponRepository(pool)

	require.NoError(t, repo.UpsertRule(ctx, coupon.Rule{
		ID:                  42,
		Code:                "SPRING",
		StoreCode:           "SNOWBOARDS",
		LimitedUseCondition: true,
		Actions: []promotion.Action{
			{ID: 1, RuleID: 42, Kind: promotion.KindItem, DiscountQuantityPerCoupon: 2},
			{ID: 2, RuleID: 42, Kind: promotion.KindShipping, ShippingOptionCode: "STD"},
		},
	}))
	require.NoError(t, repo.UpsertConfig(ctx, coupon.Config{RuleCode: "SPRING", UsageType: coupon.LimitPerAnyUser, UsageLimit: 3}))

	n, err := repo.InsertCoupons(ctx, []coupon.Coupon{
		{Code: "SPRING-1", Config: coupon.Config{RuleCode: "SPRING"}},
		{Code: "SPRING-2", Config: coupon.Config{RuleCode: "SPRING"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.InsertCoupons(ctx, []coupon.Coupon{{Code: "SPRING-1", Config: coupon.Config{RuleCode: "SPRING"}}})
	require.NoError(t, err)
	assert.Zero(t, n, "existing codes are skipped")

	ok, err := repo.Exists(ctx, "spring-2")
	require.NoError(t, err)
	assert.True(t, ok)

	c, err := repo.FindByCode(ctx, "spring-1")
	require.NoError(t, err)
	assert.Equal(t, "SPRING-1", c.Code)
	assert.Equal(t, coupon.LimitPerAnyUser, c.Config.UsageType)
	assert.Equal(t, 3, c.Config.UsageLimit)

	_, err = repo.FindByCode(ctx, "BOGUS")
	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)

	rule, err := repo.RuleByCode(ctx, "spring")
	require.NoError(t, err)
	assert.Equal(t, int64(42), rule.ID)
	require.Len(t, rule.Actions, 2)
	assert.Equal(t, promotion.KindShipping, rule.Actions[1].Kind)

	_, err = repo.RuleByCode(ctx, "NOPE")
	require.ErrorIs(t, err, coupon.ErrRuleNotFound)

	_, err = repo.FindUsage(ctx, "SPRING-1", "rider@example.com")
	require.ErrorIs(t, err, coupon.ErrUsageNotFound)

	require.NoError(t, repo.SaveUsage(ctx, coupon.Usage{Code: "SPRING-1", CustomerEmail: "rider@example.com", UseCount: 1}))
	require.NoError(t, repo.SaveUsage(ctx, coupon.Usage{Code: "SPRING-1", CustomerEmail: "rider@example.com", UseCount: 2}))

	u, err := repo.FindUsage(ctx, "SPRING-1", "rider@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, u.UseCount)

	// The service resolves coupons end to end against the repository.
	svc := coupon.NewService(repo)
	res, err := svc.Resolve(ctx, coupon.UseRequest{Code: "spring-2", StoreCode: "SNOWBOARDS", ShopperEmail: "rider@example.com"})
	require.NoError(t, err)
	require.NotNil(t, res.Usage)
	assert.True(t, res.Usage.ActiveInCart)
}
