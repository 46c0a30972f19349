package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache lookup outcomes reported through RecordCacheLookup.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupCorrupt = "corrupt"
)

// Metrics records fetch, cache and gate metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one fetch with duration and error status.
	RecordFetch(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCacheLookup records a cache lookup outcome for a namespace.
	RecordCacheLookup(ctx context.Context, namespace, outcome string)

	// RecordGateOutcome records the status a gate stage assigned to a record.
	RecordGateOutcome(ctx context.Context, stage, category, status string)
}

type metricsImpl struct {
	fetchTotal   metric.Int64Counter
	fetchErrors  metric.Int64Counter
	fetchLatency metric.Float64Histogram
	cacheLookups metric.Int64Counter
	gateOutcomes metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	fetchTotal, err := meter.Int64Counter(
		"snapgate.fetch.total",
		metric.WithDescription("Total number of upstream fetches"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"snapgate.fetch.errors",
		metric.WithDescription("Total number of failed upstream fetches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	fetchLatency, err := meter.Float64Histogram(
		"snapgate.fetch.duration_ms",
		metric.WithDescription("Upstream fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"snapgate.cache.lookups",
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	gateOutcomes, err := meter.Int64Counter(
		"snapgate.gate.outcomes",
		metric.WithDescription("Gate stage outcomes by status"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		fetchTotal:   fetchTotal,
		fetchErrors:  fetchErrors,
		fetchLatency: fetchLatency,
		cacheLookups: cacheLookups,
		gateOutcomes: gateOutcomes,
	}, nil
}

func (m *metricsImpl) RecordFetch(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	// Subject is left out on purpose: identities are unbounded cardinality.
	opt := metric.WithAttributes(
		attribute.String("component", meta.Component),
		attribute.String("operation", meta.Operation),
	)

	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchLatency.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, namespace, outcome string) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("outcome", outcome),
	))
}

func (m *metricsImpl) RecordGateOutcome(ctx context.Context, stage, category, status string) {
	m.gateOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("category", category),
		attribute.String("status", status),
	))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordFetch(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheLookup(context.Context, string, string)         {}
func (noopMetrics) RecordGateOutcome(context.Context, string, string, string) {}
