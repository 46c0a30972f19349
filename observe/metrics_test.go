package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordFetch(t *testing.T) {
	m, reader := newTestMetrics(t)
	meta := OpMeta{Component: "dispatch", Operation: "fetch", Subject: "AAPL"}

	m.RecordFetch(context.Background(), meta, 10*time.Millisecond, nil)
	m.RecordFetch(context.Background(), meta, 20*time.Millisecond, errors.New("503"))

	rm := collect(t, reader)

	total := findMetric(rm, "snapgate.fetch.total")
	if total == nil {
		t.Fatal("snapgate.fetch.total metric not found")
	}
	if got := sumInt(t, total); got != 2 {
		t.Errorf("fetch.total = %d, want 2", got)
	}

	errs := findMetric(rm, "snapgate.fetch.errors")
	if errs == nil {
		t.Fatal("snapgate.fetch.errors metric not found")
	}
	if got := sumInt(t, errs); got != 1 {
		t.Errorf("fetch.errors = %d, want 1", got)
	}

	if findMetric(rm, "snapgate.fetch.duration_ms") == nil {
		t.Error("snapgate.fetch.duration_ms metric not found")
	}
}

func TestMetrics_CacheAndGate(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCacheLookup(context.Background(), "live", LookupHit)
	m.RecordCacheLookup(context.Background(), "live", LookupMiss)
	m.RecordGateOutcome(context.Background(), "initial", "income", "AWAIT_CONFIRMATION")

	rm := collect(t, reader)

	lookups := findMetric(rm, "snapgate.cache.lookups")
	if lookups == nil {
		t.Fatal("snapgate.cache.lookups metric not found")
	}
	if got := sumInt(t, lookups); got != 2 {
		t.Errorf("cache.lookups = %d, want 2", got)
	}

	outcomes := findMetric(rm, "snapgate.gate.outcomes")
	if outcomes == nil {
		t.Fatal("snapgate.gate.outcomes metric not found")
	}
	if got := sumInt(t, outcomes); got != 1 {
		t.Errorf("gate.outcomes = %d, want 1", got)
	}
}

func TestNopMetrics_DoesNotPanic(t *testing.T) {
	m := NopMetrics()
	m.RecordFetch(context.Background(), OpMeta{}, 0, errors.New("x"))
	m.RecordCacheLookup(context.Background(), "", "")
	m.RecordGateOutcome(context.Background(), "", "", "")
}
