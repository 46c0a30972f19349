package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for dispatch operations.
var (
	// ErrTimeout is returned when a fetch exceeds the per-task timeout.
	ErrTimeout = errors.New("dispatch: fetch timed out")

	// ErrCircuitOpen is returned when a Breaker is rejecting calls.
	ErrCircuitOpen = errors.New("dispatch: circuit breaker is open")

	// ErrNilFetch is returned by RunBatch when fetch is nil.
	ErrNilFetch = errors.New("dispatch: fetch func is nil")
)

// Kind classifies a fetch failure.
type Kind int

const (
	// KindNone means the fetch succeeded.
	KindNone Kind = iota

	// KindTransient covers timeouts, rate limiting and server-side failures.
	// A later attempt may succeed.
	KindTransient

	// KindPermanent covers malformed identities and missing subjects.
	// Retrying will not help.
	KindPermanent

	// KindCancelled means the batch was cancelled before the fetch finished.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FetchError is the error carried by a failed Result.
type FetchError struct {
	SubjectID string
	Kind      Kind
	Err       error
}

func (e *FetchError) Error() string {
	if e.SubjectID == "" {
		return fmt.Sprintf("dispatch: %s fetch error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("dispatch: %s fetch error for %s: %v", e.Kind, e.SubjectID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient marks err as recoverable by a later attempt.
// Fetch functions return it for timeouts, throttling and 5xx responses.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Kind: KindTransient, Err: err}
}

// Permanent marks err as not worth retrying.
// Fetch functions return it for malformed identities and not-found subjects.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Kind: KindPermanent, Err: err}
}

// KindOf classifies err. Errors not marked with Transient or Permanent are
// treated as transient, except context cancellation which is KindCancelled.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransient
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// classify builds the FetchError stored on a Result.
func classify(subjectID string, kind Kind, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Kind == kind {
		err = fe.Err
	}
	return &FetchError{SubjectID: subjectID, Kind: kind, Err: err}
}
