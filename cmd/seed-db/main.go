// Command seed-db loads the catalog, promotion rules, coupons and gift
// certificates of a YAML seed file into PostgreSQL.
package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xenking/kart-pricing/db"
	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/money"
	"github.com/xenking/kart-pricing/internal/quote"
	"github.com/xenking/kart-pricing/internal/repository"
)

// seedFile shares its section shapes with the inline sections of a quote
// scenario, so a scenario's data can be moved into the database verbatim.
type seedFile struct {
	SKUs             []quote.SKU             `yaml:"skus"`
	Promotions       []quote.Promotion       `yaml:"promotions"`
	GiftCertificates []quote.GiftCertificate `yaml:"gift_certificates"`
}

// store is what seeding writes to.
type store interface {
	UpsertSKU(ctx context.Context, s catalog.SKU) error
	UpsertRule(ctx context.Context, rule coupon.Rule) error
	UpsertConfig(ctx context.Context, cfg coupon.Config) error
	InsertCoupons(ctx context.Context, coupons []coupon.Coupon) (int64, error)
	UpsertGiftCertificate(ctx context.Context, a giftcert.Account) error
}

type repositories struct {
	*repository.CouponRepository
	skus  *repository.CatalogRepository
	certs *repository.GiftCertificateRepository
}

func (r repositories) UpsertSKU(ctx context.Context, s catalog.SKU) error {
	return r.skus.Upsert(ctx, s)
}

func (r repositories) UpsertGiftCertificate(ctx context.Context, a giftcert.Account) error {
	return r.certs.Upsert(ctx, a)
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "", "path to the YAML seed file, the embedded default seed when empty")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, databaseURL, seedPath); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	lg := zctx.From(ctx)

	seed, err := readSeed(seedPath)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return apply(ctx, repositories{
		CouponRepository: repository.NewCouponRepository(pool),
		skus:             repository.NewCatalogRepository(pool),
		certs:            repository.NewGiftCertificateRepository(pool),
	}, seed)
}

func readSeed(path string) (*seedFile, error) {
	if path == "" {
		seed, err := decodeSeed(bytes.NewReader(db.Seed))
		if err != nil {
			return nil, errors.Wrap(err, "read embedded seed")
		}
		return seed, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	seed, err := decodeSeed(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return seed, nil
}

func decodeSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	for _, p := range seed.Promotions {
		if p.Code == "" {
			return nil, errors.Errorf("promotion %d: code is required", p.ID)
		}
		if p.UsageType != "" && !coupon.UsageType(p.UsageType).Valid() {
			return nil, errors.Errorf("promotion %q: unknown usage type %q", p.Code, p.UsageType)
		}
	}
	return &seed, nil
}

func apply(ctx context.Context, s store, seed *seedFile) error {
	lg := zctx.From(ctx)

	lg.Info("Upserting skus", zap.Int("count", len(seed.SKUs)))
	for _, sku := range seed.SKUs {
		if err := s.UpsertSKU(ctx, catalog.SKU{
			Code:         sku.Code,
			Shippable:    sku.Shippable,
			Bundle:       sku.Bundle,
			Discountable: sku.Discountable,
			Weight:       sku.Weight.Decimal,
		}); err != nil {
			return errors.Wrapf(err, "upsert sku %s", sku.Code)
		}
	}

	for _, p := range seed.Promotions {
		rule := p.Rule()
		for _, a := range rule.Actions {
			if err := a.Validate(); err != nil {
				return errors.Wrapf(err, "promotion %q", p.Code)
			}
		}
		if err := s.UpsertRule(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert rule %s", p.Code)
		}
		if err := seedCoupons(ctx, s, p); err != nil {
			return err
		}
		lg.Info("Upserted promotion",
			zap.Int64("id", p.ID),
			zap.String("code", p.Code),
			zap.Int("actions", len(rule.Actions)),
			zap.Int("coupons", len(p.Coupons)),
		)
	}

	lg.Info("Upserting gift certificates", zap.Int("count", len(seed.GiftCertificates)))
	for _, gc := range seed.GiftCertificates {
		cur, err := money.ParseCurrency(gc.Currency)
		if err != nil {
			return errors.Wrapf(err, "gift certificate %s", gc.Code)
		}
		if err := s.UpsertGiftCertificate(ctx, giftcert.Account{
			Certificate: giftcert.GiftCertificate{
				Code:      gc.Code,
				GUID:      gc.GUID,
				StoreCode: gc.Store,
				Currency:  cur,
			},
			Balance: gc.Balance.Decimal,
		}); err != nil {
			return errors.Wrapf(err, "upsert gift certificate %s", gc.Code)
		}
	}

	return nil
}

func seedCoupons(ctx context.Context, s store, p quote.Promotion) error {
	if len(p.Coupons) == 0 {
		return nil
	}
	usageType := coupon.UsageType(p.UsageType)
	if usageType == "" {
		usageType = coupon.LimitPerCoupon
	}
	cfg := coupon.Config{RuleCode: p.Code, UsageType: usageType, UsageLimit: p.UsageLimit}
	if err := s.UpsertConfig(ctx, cfg); err != nil {
		return errors.Wrapf(err, "upsert coupon config %s", p.Code)
	}

	coupons := make([]coupon.Coupon, 0, len(p.Coupons))
	for _, code := range p.Coupons {
		coupons = append(coupons, coupon.Coupon{Code: strings.TrimSpace(code), Config: cfg})
	}
	n, err := s.InsertCoupons(ctx, coupons)
	if err != nil {
		return errors.Wrapf(err, "insert coupons of %s", p.Code)
	}
	zctx.From(ctx).Debug("Inserted coupons", zap.String("rule_code", p.Code), zap.Int64("inserted", n))
	return nil
}
