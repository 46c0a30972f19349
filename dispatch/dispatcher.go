package dispatch

import (
	"cmp"
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/snapgate/observe"
)

// Config configures a Dispatcher.
type Config struct {
	// Workers is the maximum number of fetches in flight.
	// Default: 4
	Workers int

	// RatePerSecond caps how often fetches start, across all workers.
	// Default: 10
	RatePerSecond float64

	// Burst is the token bucket capacity.
	// Default: 1
	Burst int

	// TaskTimeout bounds one fetch. A fetch still running at the deadline is
	// abandoned and its task fails with ErrTimeout.
	// Default: 30 seconds
	TaskTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 30 * time.Second
	}
	return c
}

// Task is one fetch to perform. Tasks with higher Priority start first;
// equal priorities start in batch order.
type Task struct {
	SubjectID string
	Params    map[string]any
	Priority  int
}

// Result is the outcome of one Task. Exactly one of Payload and Err is set.
type Result struct {
	SubjectID string
	Payload   []byte
	Err       error
	Duration  time.Duration
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Kind classifies the failure, or returns KindNone on success.
func (r Result) Kind() Kind { return KindOf(r.Err) }

// FetchFunc fetches the payload for one task. It should honor ctx; a fetch
// that ignores it is abandoned at the task timeout but keeps its goroutine
// until it returns.
type FetchFunc func(ctx context.Context, task Task) ([]byte, error)

// Dispatcher runs fetch batches with bounded concurrency under a shared rate
// limit.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent batches share the
//     rate limiter but each batch has its own worker bound.
//   - Ordering: results match task order regardless of completion order.
//   - Errors: per-task failures are returned on the Result. RunBatch itself
//     only errors when ctx ends before the batch completes.
type Dispatcher struct {
	config     Config
	limiter    *RateLimiter
	middleware *observe.Middleware
	logger     observe.Logger
	operation  string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLimiter shares an existing rate limiter instead of creating one.
// Burst and RatePerSecond in Config are then ignored.
func WithLimiter(rl *RateLimiter) Option {
	return func(d *Dispatcher) {
		if rl != nil {
			d.limiter = rl
		}
	}
}

// WithMiddleware instruments every fetch.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(d *Dispatcher) {
		if mw != nil {
			d.middleware = mw
		}
	}
}

// WithLogger sets the logger for batch summaries.
func WithLogger(l observe.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher.
func New(config Config, opts ...Option) *Dispatcher {
	config = config.withDefaults()
	d := &Dispatcher{
		config:     config,
		middleware: observe.NewMiddleware(nil, nil, nil),
		logger:     observe.NopLogger(),
		operation:  "fetch",
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.limiter == nil {
		d.limiter = NewRateLimiter(RateLimiterConfig{Rate: config.RatePerSecond, Burst: config.Burst})
	}
	d.logger = d.logger.With(observe.F("component", "dispatch"))
	return d
}

// Config returns the dispatcher configuration with defaults applied.
func (d *Dispatcher) Config() Config { return d.config }

// Limiter returns the shared rate limiter.
func (d *Dispatcher) Limiter() *RateLimiter { return d.limiter }

// ForOperation returns a dispatcher that shares d's limiter and settings but
// labels its fetches with op in traces, metrics and logs.
func (d *Dispatcher) ForOperation(op string) *Dispatcher {
	derived := *d
	derived.operation = op
	return &derived
}

// RunBatch fetches every task and returns one Result per task, in task order.
//
// If ctx ends first, in-flight fetches are abandoned, tasks that had not
// finished carry a KindCancelled error, finished results are kept, and
// ctx.Err() is returned alongside the results.
func (d *Dispatcher) RunBatch(ctx context.Context, tasks []Task, fetch FetchFunc) ([]Result, error) {
	if fetch == nil {
		return nil, ErrNilFetch
	}
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results, ctx.Err()
	}

	start := time.Now()
	done := make([]bool, len(tasks))

	var g errgroup.Group
	g.SetLimit(d.config.Workers)
	for _, i := range launchOrder(tasks) {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = d.runTask(ctx, tasks[i], fetch)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	batchErr := ctx.Err()
	failed := 0
	for i := range results {
		if !done[i] {
			results[i] = Result{
				SubjectID: tasks[i].SubjectID,
				Err:       classify(tasks[i].SubjectID, KindCancelled, batchErr),
			}
		}
		if results[i].Err != nil {
			failed++
		}
	}

	fields := []observe.Field{
		observe.F("operation", d.operation),
		observe.F("tasks", len(tasks)),
		observe.F("failed", failed),
		observe.F("duration_ms", time.Since(start).Milliseconds()),
	}
	if batchErr != nil {
		d.logger.Warn(ctx, "batch cancelled", append(fields, observe.F("error", batchErr))...)
		return results, batchErr
	}
	d.logger.Info(ctx, "batch completed", fields...)
	return results, nil
}

func (d *Dispatcher) runTask(ctx context.Context, task Task, fetch FetchFunc) Result {
	start := time.Now()
	result := Result{SubjectID: task.SubjectID}

	if err := d.limiter.Wait(ctx); err != nil {
		result.Err = classify(task.SubjectID, KindCancelled, err)
		result.Duration = time.Since(start)
		return result
	}

	meta := observe.OpMeta{Component: "dispatch", Operation: d.operation, Subject: task.SubjectID}
	exec := d.middleware.Wrap(func(ctx context.Context, _ observe.OpMeta) ([]byte, error) {
		return callWithTimeout(ctx, d.config.TaskTimeout, func(ctx context.Context) ([]byte, error) {
			return fetch(ctx, task)
		})
	})
	payload, err := exec(ctx, meta)
	result.Duration = time.Since(start)

	if err != nil {
		kind := KindOf(err)
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		result.Err = classify(task.SubjectID, kind, err)
		return result
	}
	result.Payload = payload
	return result
}

// launchOrder returns task indexes sorted by descending priority, stable.
func launchOrder(tasks []Task) []int {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(tasks[b].Priority, tasks[a].Priority)
	})
	return order
}
