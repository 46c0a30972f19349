package pipeline

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jonwraymond/snapgate/observe"
)

// ErrNothingToEvaluate is returned by Scheduler.Step once every identity of
// the base request has exhausted its confirmation wait.
var ErrNothingToEvaluate = errors.New("pipeline: no identities left to evaluate")

// Scheduler drives repeated cycles over a fixed set of identities.
//
// The first cycle evaluates the base request. While any record is awaiting
// confirmation, later cycles evaluate only the queued identities; once the
// queue drains the next cycle evaluates the base request again. An identity
// that stays AWAIT_CONFIRMATION for the queue's cycle limit is reported once
// and never evaluated again by this Scheduler.
type Scheduler struct {
	pipeline *Pipeline
	base     Request
	queue    *WaitQueue
	logger   observe.Logger

	mu        sync.Mutex
	exhausted map[string]Waiting
}

// NewScheduler creates a scheduler for base. maxWaitCycles <= 0 uses
// DefaultMaxWaitCycles.
func NewScheduler(p *Pipeline, base Request, maxWaitCycles int) *Scheduler {
	return &Scheduler{
		pipeline:  p,
		base:      base,
		queue:     NewWaitQueue(maxWaitCycles),
		logger:    p.logger.With(observe.F("component", "scheduler")),
		exhausted: make(map[string]Waiting),
	}
}

// Queue returns the scheduler's wait queue.
func (s *Scheduler) Queue() *WaitQueue { return s.queue }

// Exhausted returns the identities whose wait ran out, ordered by identity.
func (s *Scheduler) Exhausted() []Waiting {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Waiting, 0, len(s.exhausted))
	for _, w := range s.exhausted {
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

// Next returns the request for the next cycle. ok is false when nothing is
// left to evaluate.
func (s *Scheduler) Next() (req Request, ok bool) {
	if s.queue.Len() > 0 {
		return s.queue.Request(s.base), true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req = s.base
	req.Identities = make([]string, 0, len(s.base.Identities))
	for _, id := range s.base.Identities {
		if _, gone := s.exhausted[id]; !gone {
			req.Identities = append(req.Identities, id)
		}
	}
	return req, len(req.Identities) > 0
}

// Step runs one cycle and folds it into the wait queue. It returns the cycle
// and the identities whose wait was exhausted by it.
func (s *Scheduler) Step(ctx context.Context) (Cycle, []Waiting, error) {
	req, ok := s.Next()
	if !ok {
		return Cycle{}, nil, ErrNothingToEvaluate
	}

	cycle, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return Cycle{}, nil, err
	}

	exhausted := s.queue.Update(cycle)
	if len(exhausted) > 0 {
		s.mu.Lock()
		for _, w := range exhausted {
			s.exhausted[w.Identity] = w
		}
		s.mu.Unlock()
	}
	for _, w := range exhausted {
		s.logger.Warn(ctx, "confirmation wait exhausted",
			observe.F("identity", w.Identity),
			observe.F("category", w.Category),
			observe.F("cycles", w.Cycles),
			observe.F("reason", w.Reason),
		)
	}
	return cycle, exhausted, nil
}
