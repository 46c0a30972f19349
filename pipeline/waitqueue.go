package pipeline

import (
	"slices"
	"sync"

	"github.com/jonwraymond/snapgate/gate"
)

// DefaultMaxWaitCycles is how many consecutive cycles a record may stay
// AWAIT_CONFIRMATION before the queue gives up on it.
const DefaultMaxWaitCycles = 3

// Waiting is one identity held in AWAIT_CONFIRMATION.
type Waiting struct {
	Identity string
	Category string
	Cycles   int
	Reason   string
}

// WaitQueue tracks records that are waiting on supplemental data or more
// history across cycles.
type WaitQueue struct {
	mu        sync.Mutex
	maxCycles int
	entries   map[string]Waiting
}

// NewWaitQueue creates a queue. maxCycles <= 0 uses DefaultMaxWaitCycles.
func NewWaitQueue(maxCycles int) *WaitQueue {
	if maxCycles <= 0 {
		maxCycles = DefaultMaxWaitCycles
	}
	return &WaitQueue{maxCycles: maxCycles, entries: make(map[string]Waiting)}
}

// Update folds a cycle into the queue. Records still awaiting confirmation
// gain a cycle; records that reached any other status leave the queue.
// Entries that hit the cycle limit are removed and returned.
func (q *WaitQueue) Update(c Cycle) []Waiting {
	q.mu.Lock()
	defer q.mu.Unlock()

	var exhausted []Waiting
	for _, r := range c.Records {
		if r.Status != gate.AwaitConfirmation {
			delete(q.entries, r.Identity)
			continue
		}
		w := q.entries[r.Identity]
		w.Identity = r.Identity
		w.Category = r.Category
		w.Reason = r.Reason
		w.Cycles++
		if w.Cycles >= q.maxCycles {
			delete(q.entries, r.Identity)
			exhausted = append(exhausted, w)
			continue
		}
		q.entries[r.Identity] = w
	}
	return exhausted
}

// Pending returns the queued entries ordered by identity.
func (q *WaitQueue) Pending() []Waiting {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Waiting, 0, len(q.entries))
	for _, w := range q.entries {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b Waiting) int {
		switch {
		case a.Identity < b.Identity:
			return -1
		case a.Identity > b.Identity:
			return 1
		}
		return 0
	})
	return out
}

// Len returns the number of queued identities.
func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Request builds the next cycle's request for the queued identities. Scope,
// Params and AsOf come from base; each identity keeps its recorded category.
func (q *WaitQueue) Request(base Request) Request {
	pending := q.Pending()
	req := base
	req.Identities = make([]string, len(pending))
	req.Categories = make(map[string]string, len(pending))
	for i, w := range pending {
		req.Identities[i] = w.Identity
		req.Categories[w.Identity] = w.Category
	}
	return req
}
