package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMiddleware_SuccessPath(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	metrics, reader := newTestMetrics(t)

	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, nil)
	meta := OpMeta{Component: "dispatch", Operation: "fetch", Subject: "AAPL"}

	wrapped := mw.Wrap(func(ctx context.Context, m OpMeta) ([]byte, error) {
		return []byte("payload"), nil
	})
	payload, err := wrapped(context.Background(), meta)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if string(payload) != "payload" {
		t.Errorf("payload = %q, want %q", payload, "payload")
	}

	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "snapgate.dispatch.fetch" {
		t.Errorf("span name = %q, want %q", spans[0].Name(), "snapgate.dispatch.fetch")
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	rm := collect(t, reader)
	if total := findMetric(rm, "snapgate.fetch.total"); total == nil || sumInt(t, total) != 1 {
		t.Error("expected one fetch recorded")
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	var buf bytes.Buffer

	mw := NewMiddleware(NewTracer(tp.Tracer("test")), nil, NewLoggerWithWriter("info", &buf))
	wantErr := errors.New("upstream 503")

	_, err := mw.Wrap(func(ctx context.Context, m OpMeta) ([]byte, error) {
		return nil, wantErr
	})(context.Background(), OpMeta{Component: "gate", Operation: "supplemental", Subject: "MSFT"})

	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	spans := spanRecorder.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %d", len(spans))
	}

	out := buf.String()
	if !strings.Contains(out, "fetch failed") || !strings.Contains(out, "upstream 503") {
		t.Errorf("log output missing failure details: %s", out)
	}
	if !strings.Contains(out, `"subject":"MSFT"`) {
		t.Errorf("log output missing subject: %s", out)
	}
}
