// Package ingest bulk-imports coupon codes from gzip-compressed code lists.
//
// Codes from all files funnel through a single dedupe stage backed by a
// bloom filter of the codes seen so far. A filter miss is a code never seen
// in this run; a hit is confirmed against the pending batch and then the
// store before the code is dropped as a duplicate.
package ingest

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

const progressEvery = 1_000_000

// Store persists coupons.
type Store interface {
	// Exists reports whether code is stored, case-insensitively.
	Exists(ctx context.Context, code string) (bool, error)
	// InsertCoupons stores coupons, skipping existing codes, and returns the
	// number inserted.
	InsertCoupons(ctx context.Context, coupons []coupon.Coupon) (int64, error)
}

// Options configure an Ingester.
type Options struct {
	// Config is attached to every imported coupon.
	Config    coupon.Config
	BatchSize int
	// Capacity and FalsePositiveRate size the seen-codes filter.
	Capacity          uint
	FalsePositiveRate float64
	MinCodeLen        int
	MaxCodeLen        int
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.Capacity == 0 {
		o.Capacity = 10_000_000
	}
	if o.FalsePositiveRate <= 0 {
		o.FalsePositiveRate = 0.001
	}
	if o.MinCodeLen <= 0 {
		o.MinCodeLen = 1
	}
	if o.MaxCodeLen <= 0 {
		o.MaxCodeLen = 64
	}
}

// Stats summarizes an ingestion.
type Stats struct {
	Read int64
	// Skipped lines are blank or outside the allowed code length.
	Skipped    int64
	Duplicates int64
	// Existing codes were already stored before this run.
	Existing int64
	Inserted int64
	// Lookups counts store checks caused by filter hits.
	Lookups int64
}

// Ingester imports coupon codes for one rule.
type Ingester struct {
	store Store
	opts  Options

	seen    *bloom.BloomFilter
	pending map[string]struct{}
	batch   []coupon.Coupon
	stats   Stats
}

// New creates an Ingester writing to store.
func New(store Store, opts Options) (*Ingester, error) {
	if opts.Config.RuleCode == "" {
		return nil, errors.New("rule code is required")
	}
	opts.setDefaults()
	if opts.MinCodeLen > opts.MaxCodeLen {
		return nil, errors.Errorf("min code length %d exceeds max %d", opts.MinCodeLen, opts.MaxCodeLen)
	}
	return &Ingester{
		store:   store,
		opts:    opts,
		seen:    bloom.NewWithEstimates(opts.Capacity, opts.FalsePositiveRate),
		pending: make(map[string]struct{}, opts.BatchSize),
		batch:   make([]coupon.Coupon, 0, opts.BatchSize),
	}, nil
}

// IngestFiles streams every gzip file in paths concurrently and imports the
// codes they contain. An Ingester is meant for a single call.
func (i *Ingester) IngestFiles(ctx context.Context, paths []string) (Stats, error) {
	lg := zctx.From(ctx)
	codes := make(chan string, i.opts.BatchSize)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, path := range paths {
		readers.Go(func() error {
			n, err := streamFile(rctx, path, codes)
			if err != nil {
				return errors.Wrapf(err, "stream %s", path)
			}
			lg.Info("File read", zap.String("path", path), zap.Int64("lines", n))
			return nil
		})
	}
	g.Go(func() error {
		defer close(codes)
		return readers.Wait()
	})
	g.Go(func() error {
		return i.consume(gctx, codes)
	})

	if err := g.Wait(); err != nil {
		return i.stats, err
	}
	return i.stats, nil
}

// Ingest imports the codes read from r, one per line.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader) (Stats, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return i.stats, err
		}
		if err := i.add(ctx, scanner.Text()); err != nil {
			return i.stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return i.stats, errors.Wrap(err, "scan codes")
	}
	if err := i.flush(ctx); err != nil {
		return i.stats, err
	}
	return i.stats, nil
}

func (i *Ingester) consume(ctx context.Context, codes <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case code, ok := <-codes:
			if !ok {
				return i.flush(ctx)
			}
			if err := i.add(ctx, code); err != nil {
				return err
			}
		}
	}
}

func (i *Ingester) add(ctx context.Context, line string) error {
	i.stats.Read++
	if i.stats.Read%progressEvery == 0 {
		zctx.From(ctx).Info("Ingest progress",
			zap.Int64("read", i.stats.Read),
			zap.Int64("inserted", i.stats.Inserted),
		)
	}

	code := strings.ToUpper(strings.TrimSpace(line))
	if len(code) < i.opts.MinCodeLen || len(code) > i.opts.MaxCodeLen {
		i.stats.Skipped++
		return nil
	}

	if i.seen.TestString(code) {
		dup, err := i.duplicate(ctx, code)
		if err != nil {
			return err
		}
		if dup {
			i.stats.Duplicates++
			return nil
		}
	}

	i.seen.AddString(code)
	i.pending[code] = struct{}{}
	i.batch = append(i.batch, coupon.Coupon{Code: code, Config: i.opts.Config})
	if len(i.batch) >= i.opts.BatchSize {
		return i.flush(ctx)
	}
	return nil
}

// duplicate confirms a filter hit. Codes flushed earlier in the run are in
// the store by then.
func (i *Ingester) duplicate(ctx context.Context, code string) (bool, error) {
	if _, ok := i.pending[code]; ok {
		return true, nil
	}
	i.stats.Lookups++
	ok, err := i.store.Exists(ctx, code)
	if err != nil {
		return false, errors.Wrapf(err, "check %q", code)
	}
	return ok, nil
}

func (i *Ingester) flush(ctx context.Context) error {
	if len(i.batch) == 0 {
		return nil
	}
	n, err := i.store.InsertCoupons(ctx, i.batch)
	if err != nil {
		return errors.Wrap(err, "insert coupons")
	}
	i.stats.Inserted += n
	i.stats.Existing += int64(len(i.batch)) - n
	zctx.From(ctx).Debug("Batch written", zap.Int("size", len(i.batch)), zap.Int64("inserted", n))

	i.batch = i.batch[:0]
	clear(i.pending)
	return nil
}

// streamFile sends each line of the gzip file at path to out.
func streamFile(ctx context.Context, path string, out chan<- string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var n int64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case out <- scanner.Text():
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return n, errors.Wrap(err, "scan")
	}
	return n, nil
}
