package dispatch

import (
	"context"
	"time"
)

type fetchOutcome struct {
	payload []byte
	err     error
}

// callWithTimeout runs op under a per-task deadline. When the deadline passes
// or ctx is cancelled, the call returns at once and op's eventual result is
// discarded; op keeps running until it observes its own context.
func callWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) ([]byte, error)) ([]byte, error) {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan fetchOutcome, 1)
	go func() {
		payload, err := op(ctx)
		done <- fetchOutcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return nil, err
		}
		return nil, ErrTimeout
	}
}
