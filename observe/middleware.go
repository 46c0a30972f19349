package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature of an instrumented fetch.
type ExecuteFunc func(ctx context.Context, meta OpMeta) ([]byte, error)

// Middleware wraps fetches with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: payloads are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta OpMeta) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		payload, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordFetch(ctx, meta, duration, err)

		fields := append(meta.Fields(),
			Field{Key: "duration_ms", Value: float64(duration.Milliseconds())},
			Field{Key: "bytes", Value: len(payload)},
		)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Warn(ctx, "fetch failed", fields...)
		} else {
			m.logger.Debug(ctx, "fetch completed", fields...)
		}

		return payload, err
	}
}

// Instruments bundles the tracer, metrics and logger derived from an Observer.
type Instruments struct {
	Tracer     Tracer
	Metrics    Metrics
	Logger     Logger
	Middleware *Middleware
}

// InstrumentsFromObserver builds Instruments from an Observer.
func InstrumentsFromObserver(obs Observer) (Instruments, error) {
	tracer := NewTracer(obs.Tracer())

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return Instruments{}, err
	}

	return Instruments{
		Tracer:     tracer,
		Metrics:    metrics,
		Logger:     obs.Logger(),
		Middleware: NewMiddleware(tracer, metrics, obs.Logger()),
	}, nil
}
