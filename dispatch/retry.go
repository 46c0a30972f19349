package dispatch

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

// BackoffStrategy defines how delays grow between retry rounds.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each round.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases the delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for every round.
	BackoffConstant
)

// RetryPolicy configures caller-side reissue of transient failures.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts per task, including the
	// original batch.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the pause before the first retry round.
	// Default: 500ms
	InitialDelay time.Duration

	// MaxDelay caps the pause between rounds.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the growth factor for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% random delay to each pause.
	Jitter bool

	// OnRetry is called before each round with the number of tasks reissued.
	OnRetry func(attempt, tasks int, delay time.Duration)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// Delay returns the pause before retry round attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()

	var delay time.Duration
	switch p.Strategy {
	case BackoffConstant:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	default:
		delay = time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// RetryFailed reissues the transient failures in results as fresh batches on
// d until they succeed, fail permanently, or the policy's attempts run out.
// results must be the output of a batch over tasks. The returned slice is a
// copy with retried positions replaced; permanent and successful results are
// never reissued.
func RetryFailed(ctx context.Context, d *Dispatcher, policy RetryPolicy, tasks []Task, results []Result, fetch FetchFunc) ([]Result, error) {
	policy = policy.withDefaults()
	out := slices.Clone(results)

	for attempt := 1; attempt < policy.MaxAttempts; attempt++ {
		pending := retryable(out)
		if len(pending) == 0 {
			break
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, len(pending), delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return out, ctx.Err()
		case <-timer.C:
		}

		batch := make([]Task, len(pending))
		for j, i := range pending {
			batch[j] = tasks[i]
		}
		retried, err := d.RunBatch(ctx, batch, fetch)
		for j, i := range pending {
			if retried[j].Kind() == KindCancelled {
				continue // keep the transient error; the task may be retried later
			}
			retried[j].Duration += out[i].Duration
			out[i] = retried[j]
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Retryable returns the indexes of results that failed transiently.
func Retryable(results []Result) []int {
	return retryable(results)
}

func retryable(results []Result) []int {
	var idx []int
	for i, r := range results {
		if r.Kind() == KindTransient {
			idx = append(idx, i)
		}
	}
	return idx
}
