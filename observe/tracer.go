package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta describes one instrumented operation.
type OpMeta struct {
	Component string // dispatch, cache, gate (required)
	Operation string // fetch, supplemental, lookup (required)
	Subject   string // identity the operation is about (optional)
	Scope     string // sub-scope such as an expiration (optional)
}

// SpanName returns the deterministic span name: snapgate.<component>.<operation>.
func (m OpMeta) SpanName() string {
	return "snapgate." + m.Component + "." + m.Operation
}

// Fields returns the metadata as log fields, omitting empty values.
func (m OpMeta) Fields() []Field {
	fields := []Field{
		{Key: "component", Value: m.Component},
		{Key: "operation", Value: m.Operation},
	}
	if m.Subject != "" {
		fields = append(fields, Field{Key: "subject", Value: m.Subject})
	}
	if m.Scope != "" {
		fields = append(fields, Field{Key: "scope", Value: m.Scope})
	}
	return fields
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("snapgate.component", m.Component),
		attribute.String("snapgate.operation", m.Operation),
	}
	if m.Subject != "" {
		attrs = append(attrs, attribute.String("snapgate.subject", m.Subject))
	}
	if m.Scope != "" {
		attrs = append(attrs, attribute.String("snapgate.scope", m.Scope))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for the operation.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("snapgate.error", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("snapgate.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

type noopTracer struct {
	noop trace.Tracer
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
