package quote

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Runner evaluates scenarios with metrics and tracing.
type Runner struct {
	tracer   trace.Tracer
	duration metric.Float64Histogram
	records  metric.Int64Counter
	uses     metric.Int64Counter
}

// NewRunner creates a Runner reporting to the given providers.
func NewRunner(meterProvider metric.MeterProvider, tracerProvider trace.TracerProvider) (*Runner, error) {
	const scope = "github.com/xenking/kart-pricing/internal/quote"
	meter := meterProvider.Meter(scope)

	duration, err := meter.Float64Histogram("kart.quote.duration",
		metric.WithDescription("Time spent pricing a quote scenario"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}
	records, err := meter.Int64Counter("kart.quote.discount_records",
		metric.WithDescription("Discount records produced by quotes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "discount records counter")
	}
	uses, err := meter.Int64Counter("kart.quote.coupon_uses",
		metric.WithDescription("Coupon uses consumed by quotes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "coupon uses counter")
	}

	return &Runner{
		tracer:   tracerProvider.Tracer(scope),
		duration: duration,
		records:  records,
		uses:     uses,
	}, nil
}

// Run evaluates s against src.
func (r *Runner) Run(ctx context.Context, s *Scenario, src Sources) (*Breakdown, error) {
	ctx, span := r.tracer.Start(ctx, "quote.Evaluate", trace.WithAttributes(
		attribute.String("kart.store", s.Store),
		attribute.String("kart.currency", s.Currency),
		attribute.Int("kart.items", len(s.Items)),
		attribute.Int("kart.actions", len(s.Actions)),
	))
	defer span.End()

	start := time.Now()
	b, err := Evaluate(ctx, s, src)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(
		attribute.String("kart.store", s.Store),
		attribute.String("status", status),
	)
	r.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		return nil, err
	}

	r.records.Add(ctx, int64(len(b.Records)), attrs)
	r.uses.Add(ctx, int64(b.TotalCouponUses()), attrs)
	span.SetAttributes(
		attribute.String("kart.cart", b.CartGUID),
		attribute.String("kart.total", b.Total.Amount.String()),
		attribute.Int("kart.discount_records.live", b.LiveRecords()),
	)
	return b, nil
}
