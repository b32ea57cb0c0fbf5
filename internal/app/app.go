package app

import (
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/quote"
	"github.com/xenking/kart-pricing/internal/repository"
)

// Run loads the scenario, prices it and writes the breakdown. It is the
// single wiring point for the quote command.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	ctx = zctx.Base(ctx, lg)
	lg.Info("Quoting", zap.String("scenario", cfg.Scenario), zap.Bool("database", cfg.DatabaseURL != ""))

	runner, err := quote.NewRunner(m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create runner")
	}

	b, err := Quote(ctx, cfg, runner)
	if err != nil {
		return err
	}
	lg.Info("Quote priced",
		zap.String("cart", b.CartGUID),
		zap.String("total", b.Total.String()),
		zap.Int("discount_records", len(b.Records)),
		zap.Int("coupon_uses", b.TotalCouponUses()),
	)

	return writeBreakdown(cfg.Output, b)
}

// Quote reads the configured scenario and prices it with runner.
func Quote(ctx context.Context, cfg *Config, runner *quote.Runner) (*quote.Breakdown, error) {
	s, err := readScenario(cfg.Scenario)
	if err != nil {
		return nil, err
	}

	src, closeSources, err := openSources(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	defer closeSources()

	b, err := runner.Run(ctx, s, src)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate scenario")
	}
	return b, nil
}

func readScenario(path string) (*quote.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open scenario")
	}
	defer func() { _ = f.Close() }()

	s, err := quote.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	return s, nil
}

// openSources returns the inline scenario lookups, or the database-backed
// ones when a database URL is configured.
func openSources(ctx context.Context, cfg *Config, s *quote.Scenario) (quote.Sources, func(), error) {
	if cfg.DatabaseURL == "" {
		src, err := quote.InlineSources(s)
		if err != nil {
			return quote.Sources{}, nil, errors.Wrap(err, "inline sources")
		}
		return src, func() {}, nil
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return quote.Sources{}, nil, errors.Wrap(err, "create db pool")
	}
	if cfg.Migrate {
		if err := repository.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return quote.Sources{}, nil, errors.Wrap(err, "run migrations")
		}
	}

	src, err := Prefetch(ctx, cfg.PrefetchTimeout, Repositories{
		SKUs:             repository.NewCatalogRepository(pool),
		GiftCertificates: repository.NewGiftCertificateRepository(pool),
		Coupons:          repository.NewCouponRepository(pool),
	}, s)
	if err != nil {
		pool.Close()
		return quote.Sources{}, nil, err
	}
	return src, pool.Close, nil
}

func writeBreakdown(output string, b *quote.Breakdown) error {
	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	var e jx.Encoder
	e.SetIdent(2)
	b.Encode(&e)
	e.RawStr("\n")
	if _, err := e.WriteTo(w); err != nil {
		return errors.Wrap(err, "write breakdown")
	}
	return nil
}
