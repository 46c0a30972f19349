package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/snapgate/cache"
	"github.com/jonwraymond/snapgate/gate"
)

// Request selects the snapshots to resolve.
type Request struct {
	Identities []string

	// Scope is the cache sub-scope, such as an expiration date. When empty,
	// the scope is derived from Params with cache.ScopeOf.
	Scope string

	// Params are passed to the data source with every fetch.
	Params map[string]any

	// AsOf is the snapshot date. Zero means today.
	AsOf time.Time

	// Category applies to every identity without an entry in Categories.
	Category   string
	Categories map[string]string
}

func (r Request) categoryOf(identity string) string {
	if c, ok := r.Categories[identity]; ok {
		return c
	}
	return r.Category
}

// Snapshot is one resolved identity. Exactly one of Payload and Err is set.
type Snapshot struct {
	Identity string
	Category string
	Key      cache.Key

	Payload   []byte
	FromCache bool

	Fields      map[string]float64
	HistoryDays int

	Err error
}

// OK reports whether the snapshot holds data.
func (s Snapshot) OK() bool { return s.Err == nil }

// Cycle is the result of one evaluation.
type Cycle struct {
	ID        uuid.UUID
	AsOf      time.Time
	Namespace string
	Records   []gate.Record
	Validated []gate.Validated
}

// Counts tallies records by execution status.
func (c Cycle) Counts() map[gate.Status]int {
	counts := make(map[gate.Status]int)
	for _, r := range c.Records {
		counts[r.Status]++
	}
	return counts
}
