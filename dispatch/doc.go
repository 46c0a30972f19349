// Package dispatch fans fetch tasks out to a bounded worker pool under one
// shared rate limit.
//
// A Dispatcher runs a batch of Tasks through a caller-supplied FetchFunc and
// returns exactly one Result per Task, in Task order. Individual failures
// never abort a batch: errors and timeouts are captured on the Result and
// classified by Kind so callers can tell "no data for this subject" from
// "try again later".
//
// # Throttling
//
// Two limits apply at once:
//
//   - Workers bounds how many fetches are in flight.
//   - RatePerSecond bounds how often fetches start, across all workers,
//     through a single token bucket (see RateLimiter).
//
// With the default Burst of 1, a batch of 100 tasks at 10 per second takes
// at least 9.9 seconds no matter how many workers are configured.
//
// # Retries
//
// The dispatcher never retries. Callers that want to reissue transient
// failures pass the batch results to RetryFailed with a RetryPolicy:
//
//	d := dispatch.New(dispatch.Config{Workers: 4, RatePerSecond: 10})
//	results, err := d.RunBatch(ctx, tasks, fetch)
//	if err != nil {
//	    return err // batch cancelled; results still holds finished tasks
//	}
//	results, err = dispatch.RetryFailed(ctx, d, dispatch.RetryPolicy{MaxAttempts: 3}, tasks, results, fetch)
//
// # Circuit breaking
//
// Breaker stops calling a data source that keeps failing transiently and
// reports ErrCircuitOpen as a transient error until the source recovers.
package dispatch
