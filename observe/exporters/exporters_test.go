package exporters

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExporter_InvalidName(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "invalid")
	if err == nil || !strings.Contains(err.Error(), "unknown exporter") {
		t.Fatalf("NewTracingExporter(invalid) error = %v, want unknown exporter", err)
	}

	_, err = NewMetricsReader(context.Background(), "invalid")
	if err == nil || !strings.Contains(err.Error(), "unknown metrics exporter") {
		t.Fatalf("NewMetricsReader(invalid) error = %v, want unknown metrics exporter", err)
	}
}

func TestExporter_None(t *testing.T) {
	exp, err := NewTracingExporter(context.Background(), "none")
	if err != nil || exp == nil {
		t.Fatalf("NewTracingExporter(none) = %v, %v", exp, err)
	}
	reader, err := NewMetricsReader(context.Background(), "")
	if err != nil || reader == nil {
		t.Fatalf("NewMetricsReader(\"\") = %v, %v", reader, err)
	}
}

func TestExporter_OTLPRequiresEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), "otlp"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("tracing otlp error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := NewMetricsReader(context.Background(), "otlp"); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("metrics otlp error = %v, want ErrEndpointNotConfigured", err)
	}
}
