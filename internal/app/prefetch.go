package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/catalog"
	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/giftcert"
	"github.com/xenking/kart-pricing/internal/quote"
)

// Repositories are the stores a scenario is priced against when no inline
// data is used.
type Repositories struct {
	SKUs             catalog.Repository
	GiftCertificates giftcert.Repository
	Coupons          coupon.Repository
}

// Prefetch loads the SKUs and gift certificates referenced by s concurrently.
// Coupons are resolved lazily through the repository while pricing.
func Prefetch(ctx context.Context, timeout time.Duration, repos Repositories, s *quote.Scenario) (quote.Sources, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		skus     catalog.MapLookup
		certs    []giftcert.GiftCertificate
		balances giftcert.Balances
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		skus, err = catalog.Load(gctx, repos.SKUs, s.SKUCodes())
		if err != nil {
			return errors.Wrap(err, "load skus")
		}
		return nil
	})
	g.Go(func() error {
		if len(s.Redeem) == 0 {
			return nil
		}
		var err error
		certs, balances, err = giftcert.Load(gctx, repos.GiftCertificates, s.Redeem)
		if err != nil {
			return errors.Wrap(err, "load gift certificates")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return quote.Sources{}, err
	}

	zctx.From(ctx).Debug("Prefetched lookups",
		zap.Int("skus", len(skus)),
		zap.Int("gift_certificates", len(certs)),
	)

	src := quote.Sources{
		SKUs:             skus,
		GiftCertificates: certs,
		Balances:         balances,
	}
	if repos.Coupons != nil {
		src.Coupons = coupon.NewService(repos.Coupons)
	}
	return src, nil
}
