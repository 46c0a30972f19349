package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache operations.
var (
	ErrNilStore        = errors.New("cache: store is nil")
	ErrInvalidKey      = errors.New("cache: key is invalid")
	ErrKeyTooLong      = errors.New("cache: key exceeds max length")
	ErrInvalidScenario = errors.New("cache: scenario name is invalid")
	ErrNotFound        = errors.New("cache: entry not found")
	ErrEntryTooLarge   = errors.New("cache: entry exceeds max size")
)

// CorruptionError reports a stored entry that cannot be trusted: truncated,
// unparseable, or failing its checksum. Callers treat it as a miss.
type CorruptionError struct {
	Path   string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("cache: corrupt entry %s: %s", e.Path, e.Reason)
}
