package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/ncmat/cache"
)

// Metrics records cache lookups and material builds.
//
// Metrics is a cache.Observer and is installed on material stores.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	cache.Observer
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	builds       metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates cache metrics on the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	lookups, err := meter.Int64Counter(
		"ncmat.cache.lookups",
		metric.WithDescription("Material cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	builds, err := meter.Int64Counter(
		"ncmat.cache.builds",
		metric.WithDescription("Material constructions by outcome"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"ncmat.cache.build.duration_ms",
		metric.WithDescription("Material construction duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		builds:       builds,
		durationHist: durationHist,
	}, nil
}

// Lookup counts a cache lookup. Keys are not used as attributes: derived keys
// are full configuration strings and would explode cardinality.
func (m *metricsImpl) Lookup(ctx context.Context, store, _ string, result cache.Result) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("result", string(result)),
	))
}

// Build counts a builder invocation and records its duration.
func (m *metricsImpl) Build(ctx context.Context, store, _ string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.builds.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("outcome", outcome),
	))

	m.durationHist.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.String("store", store)))
}

type noopMetrics struct{}

func (m *noopMetrics) Lookup(context.Context, string, string, cache.Result) {}

func (m *noopMetrics) Build(context.Context, string, string, time.Duration, error) {}
