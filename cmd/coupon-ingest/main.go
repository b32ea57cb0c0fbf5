// Command coupon-ingest bulk-imports limited-use coupon codes for a rule from
// gzip-compressed code lists, one code per line.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/ingest"
	"github.com/xenking/kart-pricing/internal/repository"
)

type options struct {
	databaseURL string
	pattern     string
	config      coupon.Config
	upsert      bool
	ingest      ingest.Options
}

func main() {
	var (
		opts      options
		usageType string
		capacity  uint
	)

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.pattern, "files", "data/*.gz", "glob of gzip-compressed code lists")
	flag.StringVar(&opts.config.RuleCode, "rule-code", "", "rule the imported coupons unlock")
	flag.StringVar(&usageType, "usage-type", string(coupon.LimitPerCoupon), "coupon usage type")
	flag.IntVar(&opts.config.UsageLimit, "usage-limit", 1, "uses allowed per coupon, 0 for unlimited")
	flag.BoolVar(&opts.upsert, "upsert-config", true, "create or replace the coupon config of the rule")
	flag.IntVar(&opts.ingest.BatchSize, "batch-size", 1000, "coupons per insert batch")
	flag.UintVar(&capacity, "capacity", 10_000_000, "expected number of distinct codes")
	flag.Float64Var(&opts.ingest.FalsePositiveRate, "fpr", 0.001, "seen-codes filter false positive rate")
	flag.IntVar(&opts.ingest.MinCodeLen, "min-len", 4, "minimum code length")
	flag.IntVar(&opts.ingest.MaxCodeLen, "max-len", 32, "maximum code length")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	opts.config.UsageType = coupon.UsageType(usageType)
	opts.ingest.Capacity = capacity
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.config.RuleCode == "" {
		lg.Fatal("Rule code is required: set --rule-code")
	}
	if !opts.config.UsageType.Valid() {
		lg.Fatal("Unknown usage type", zap.String("usage_type", usageType))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Coupon ingest failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	files, err := filepath.Glob(opts.pattern)
	if err != nil {
		return errors.Wrap(err, "match files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %q", opts.pattern)
	}

	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewCouponRepository(pool)
	if _, err := repo.RuleByCode(ctx, opts.config.RuleCode); err != nil {
		return errors.Wrapf(err, "rule %q", opts.config.RuleCode)
	}
	if opts.upsert {
		if err := repo.UpsertConfig(ctx, opts.config); err != nil {
			return errors.Wrap(err, "upsert coupon config")
		}
	}

	opts.ingest.Config = opts.config
	ingester, err := ingest.New(repo, opts.ingest)
	if err != nil {
		return errors.Wrap(err, "create ingester")
	}

	lg.Info("Ingesting coupons", zap.Strings("files", files), zap.String("rule_code", opts.config.RuleCode))
	stats, err := ingester.IngestFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "ingest files")
	}

	lg.Info("Coupon ingest completed",
		zap.Int64("read", stats.Read),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("existing", stats.Existing),
		zap.Int64("inserted", stats.Inserted),
		zap.Int64("lookups", stats.Lookups),
	)
	return nil
}
