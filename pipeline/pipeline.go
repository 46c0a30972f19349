package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/snapgate/cache"
	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/gate"
	"github.com/jonwraymond/snapgate/observe"
)

// Sentinel errors for pipeline operations.
var (
	ErrNoIdentities  = errors.New("pipeline: request has no identities")
	ErrNotInScenario = errors.New("pipeline: snapshot not in replayed scenario")
	ErrMissingDep    = errors.New("pipeline: missing dependency")
)

// StageFetch is the audit stage of records whose snapshot could not be fetched.
const StageFetch = "fetch"

// Config configures a Pipeline.
type Config struct {
	// Retry is the policy used by RetryFailed.
	Retry dispatch.RetryPolicy

	// FetchOnReplayMiss lets a replaying pipeline fetch snapshots missing
	// from the scenario and write them into it. By default replay is
	// read-only and such snapshots fail with ErrNotInScenario.
	FetchOnReplayMiss bool
}

// Pipeline ties the cache, dispatcher and gates together.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent requests for the same
//     cache key share one source fetch.
//   - Isolation: Replay and Live only affect this Pipeline.
type Pipeline struct {
	config     Config
	live       *cache.Cache
	dispatcher *dispatch.Dispatcher
	fetch      dispatch.FetchFunc
	engine     *gate.Engine
	validation *gate.ValidationGate
	logger     observe.Logger
	now        func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	active *cache.Cache
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l observe.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithValidationGate replaces the default validation gate.
func WithValidationGate(g *gate.ValidationGate) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.validation = g
		}
	}
}

// WithClock overrides the clock used for a zero Request.AsOf.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a pipeline. fetch retrieves primary snapshots through d.
func New(cfg Config, c *cache.Cache, d *dispatch.Dispatcher, fetch dispatch.FetchFunc, engine *gate.Engine, opts ...Option) (*Pipeline, error) {
	switch {
	case c == nil:
		return nil, fmt.Errorf("%w: cache", ErrMissingDep)
	case d == nil:
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDep)
	case fetch == nil:
		return nil, fmt.Errorf("%w: fetch func", ErrMissingDep)
	case engine == nil:
		return nil, fmt.Errorf("%w: gate engine", ErrMissingDep)
	}

	p := &Pipeline{
		config:     cfg,
		live:       c,
		active:     c,
		dispatcher: d,
		fetch:      fetch,
		engine:     engine,
		logger:     observe.NopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validation == nil {
		g, err := gate.NewValidationGate()
		if err != nil {
			return nil, err
		}
		p.validation = g
	}
	p.logger = p.logger.With(observe.F("component", "pipeline"))
	return p, nil
}

func (p *Pipeline) activeCache() *cache.Cache {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Namespace returns the namespace FetchOrCache currently reads.
func (p *Pipeline) Namespace() string { return p.activeCache().Namespace() }

// Replaying reports whether a scenario is active.
func (p *Pipeline) Replaying() bool { return p.activeCache() != p.live }

// Replay points subsequent FetchOrCache calls at a frozen scenario.
func (p *Pipeline) Replay(name string) error {
	scenario, err := p.live.WithScenario(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.active = scenario
	p.mu.Unlock()
	p.logger.Info(context.Background(), "replaying scenario", observe.F("scenario", name))
	return nil
}

// Live points subsequent FetchOrCache calls back at the live namespace.
func (p *Pipeline) Live() {
	p.mu.Lock()
	p.active = p.live
	p.mu.Unlock()
}

// Freeze copies the active namespace into the named scenario.
func (p *Pipeline) Freeze(ctx context.Context, name string) (int, error) {
	return p.activeCache().Freeze(ctx, name)
}

// FetchOrCache resolves every requested identity from the active namespace,
// fetching misses through the dispatcher and writing successes back.
// Snapshots are returned in request order. Per-identity failures are carried
// on the Snapshot; the error is non-nil only for an invalid request or a
// cancelled context.
func (p *Pipeline) FetchOrCache(ctx context.Context, req Request) ([]Snapshot, error) {
	if len(req.Identities) == 0 {
		return nil, ErrNoIdentities
	}
	scope, err := p.scopeOf(req)
	if err != nil {
		return nil, err
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = p.now()
	}

	active := p.activeCache()
	snaps := make([]Snapshot, len(req.Identities))
	byName := make(map[string]int) // entry name -> task index
	var tasks []dispatch.Task
	var waiting [][]int // task index -> snapshot indexes

	for i, id := range req.Identities {
		snap := Snapshot{Identity: id, Category: req.categoryOf(id)}
		key, err := cache.NewKey(strings.TrimSpace(id), scope, asOf)
		if err != nil {
			snap.Err = dispatch.Permanent(err)
			snaps[i] = snap
			continue
		}
		snap.Key = key.InNamespace(active.Namespace())

		if payload, ok := active.Get(ctx, key); ok {
			snaps[i] = decodeInto(snap, payload, true)
			continue
		}
		snaps[i] = snap

		t, queued := byName[key.Name()]
		if !queued {
			t = len(tasks)
			byName[key.Name()] = t
			tasks = append(tasks, dispatch.Task{SubjectID: key.SubjectID(), Params: p.taskParams(req)})
			waiting = append(waiting, nil)
		}
		waiting[t] = append(waiting[t], i)
	}

	if len(tasks) == 0 {
		return snaps, nil
	}

	results, batchErr := p.dispatcher.RunBatch(ctx, tasks, p.sharedFetch(active, scope, asOf))
	for t, res := range results {
		for _, i := range waiting[t] {
			if !res.OK() {
				snaps[i].Err = res.Err
				continue
			}
			snaps[i] = decodeInto(snaps[i], res.Payload, false)
		}
	}

	p.logger.Info(ctx, "snapshots resolved",
		observe.F("namespace", active.Namespace()),
		observe.F("requested", len(req.Identities)),
		observe.F("fetched", len(tasks)),
	)
	return snaps, batchErr
}

// sharedFetch wraps the source fetch so that concurrent callers for one key
// share a single call, and successful payloads are written to the cache.
// The shared call is detached from any one caller's cancellation and bounded
// by the dispatcher's task timeout; each caller stops waiting when its own
// context ends.
func (p *Pipeline) sharedFetch(active *cache.Cache, scope string, asOf time.Time) dispatch.FetchFunc {
	return func(ctx context.Context, task dispatch.Task) ([]byte, error) {
		key, err := cache.NewKey(task.SubjectID, scope, asOf)
		if err != nil {
			return nil, dispatch.Permanent(err)
		}
		key = key.InNamespace(active.Namespace())

		ch := p.group.DoChan(key.Path(), func() (any, error) {
			sctx, cancel := p.detached(ctx)
			defer cancel()
			return p.fetchAndStore(sctx, active, key, task)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if isContextErr(res.Err) && ctx.Err() == nil {
					// The shared call ran out of time, not this caller.
					return nil, dispatch.Transient(res.Err)
				}
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}
	}
}

func (p *Pipeline) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if timeout := p.dispatcher.Config().TaskTimeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) fetchAndStore(ctx context.Context, active *cache.Cache, key cache.Key, task dispatch.Task) ([]byte, error) {
	// Another caller may have filled the entry while this one queued.
	if payload, ok := active.Get(ctx, key); ok {
		return payload, nil
	}
	if active != p.live && !p.config.FetchOnReplayMiss {
		return nil, dispatch.Permanent(fmt.Errorf("%w: %s", ErrNotInScenario, key.Path()))
	}

	payload, err := p.fetch(ctx, task)
	if err != nil {
		return nil, err
	}
	if _, err := gate.DecodePayload(payload); err != nil {
		return nil, dispatch.Permanent(err)
	}
	if err := active.Put(ctx, key, payload); err != nil {
		p.logger.Warn(ctx, "cache write failed", observe.F("key", key.Path()), observe.F("error", err))
	}
	return payload, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// scopeOf derives the key sub-scope of req. Params always take part in the
// key: alone they are digested into the sub-scope, and next to an explicit
// Scope their digest is appended to it.
func (p *Pipeline) scopeOf(req Request) (string, error) {
	if len(req.Params) == 0 {
		return req.Scope, nil
	}
	digest, err := cache.ScopeOf(req.Params)
	if err != nil {
		return "", err
	}
	if req.Scope == "" {
		return digest, nil
	}
	return req.Scope + "." + digest, nil
}

// taskParams returns the parameters sent to the source. An explicit Scope
// travels as the "scope" parameter.
func (p *Pipeline) taskParams(req Request) map[string]any {
	params := maps.Clone(req.Params)
	if params == nil {
		params = make(map[string]any, 1)
	}
	if req.Scope != "" {
		params["scope"] = req.Scope
	}
	return params
}

func decodeInto(snap Snapshot, payload []byte, fromCache bool) Snapshot {
	decoded, err := gate.DecodePayload(payload)
	if err != nil {
		snap.Err = dispatch.Permanent(err)
		return snap
	}
	snap.Payload = payload
	snap.FromCache = fromCache
	snap.Fields = decoded.Fields
	snap.HistoryDays = decoded.HistoryDays
	snap.Err = nil
	return snap
}

// RetryFailed reissues the snapshots of req that failed transiently, using
// the configured retry policy. Successes and permanent failures are kept.
// snaps must be the output of FetchOrCache for req.
func (p *Pipeline) RetryFailed(ctx context.Context, req Request, snaps []Snapshot) ([]Snapshot, error) {
	out := slices.Clone(snaps)
	var idx []int
	for i, s := range out {
		if dispatch.IsRetryable(s.Err) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return out, nil
	}

	first := out[idx[0]].Key
	tasks := make([]dispatch.Task, len(idx))
	results := make([]dispatch.Result, len(idx))
	for j, i := range idx {
		tasks[j] = dispatch.Task{SubjectID: out[i].Key.SubjectID(), Params: p.taskParams(req)}
		results[j] = dispatch.Result{SubjectID: out[i].Key.SubjectID(), Err: out[i].Err}
	}

	policy := p.config.Retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt, n int, delay time.Duration) {
		p.logger.Info(ctx, "retrying transient failures",
			observe.F("attempt", attempt),
			observe.F("identities", n),
			observe.F("delay_ms", delay.Milliseconds()),
		)
		if onRetry != nil {
			onRetry(attempt, n, delay)
		}
	}

	fetch := p.sharedFetch(p.activeCache(), first.SubScope(), first.AsOf())
	retried, err := dispatch.RetryFailed(ctx, p.dispatcher, policy, tasks, results, fetch)
	for j, i := range idx {
		if retried[j].OK() {
			out[i] = decodeInto(out[i], retried[j].Payload, false)
		} else {
			out[i].Err = retried[j].Err
		}
	}
	return out, err
}

// Evaluate runs the execution gate and the validation gate over snapshots.
// Snapshots that failed to resolve become INCOMPLETE_DATA records without
// entering the gate.
func (p *Pipeline) Evaluate(ctx context.Context, snaps []Snapshot) Cycle {
	records := make([]gate.Record, len(snaps))
	var gated []int
	var inputs []gate.Record
	for i, s := range snaps {
		if !s.OK() {
			records[i] = p.unfetchedRecord(s)
			continue
		}
		gated = append(gated, i)
		inputs = append(inputs, gate.Record{
			Identity:    s.Identity,
			Category:    s.Category,
			Fields:      s.Fields,
			HistoryDays: s.HistoryDays,
		})
	}

	for j, r := range p.engine.Evaluate(ctx, inputs) {
		records[gated[j]] = r
	}

	cycle := Cycle{
		ID:        uuid.New(),
		AsOf:      cycleDate(snaps, p.now()),
		Namespace: p.Namespace(),
		Records:   records,
		Validated: p.validation.Validate(ctx, records),
	}

	counts := cycle.Counts()
	p.logger.Info(ctx, "cycle evaluated",
		observe.F("cycle_id", cycle.ID.String()),
		observe.F("namespace", cycle.Namespace),
		observe.F("records", len(records)),
		observe.F("ready", counts[gate.Ready]),
		observe.F("awaiting", counts[gate.AwaitConfirmation]),
		observe.F("incomplete", counts[gate.IncompleteData]),
	)
	return cycle
}

// Run resolves, retries and evaluates one request.
func (p *Pipeline) Run(ctx context.Context, req Request) (Cycle, error) {
	snaps, err := p.FetchOrCache(ctx, req)
	if err != nil {
		return Cycle{}, err
	}
	snaps, err = p.RetryFailed(ctx, req, snaps)
	if err != nil {
		return Cycle{}, err
	}
	return p.Evaluate(ctx, snaps), nil
}

func (p *Pipeline) unfetchedRecord(s Snapshot) gate.Record {
	kind := dispatch.KindOf(s.Err)
	required := p.engine.Config().Categories[s.Category].RequiredFields
	return gate.Record{
		Identity:       s.Identity,
		Category:       s.Category,
		Fields:         map[string]float64{},
		RequiredFields: append([]string(nil), required...),
		Missing:        append([]string(nil), required...),
		Status:         gate.IncompleteData,
		Reason:         fmt.Sprintf("snapshot unavailable: %v", s.Err),
		Audit: []gate.AuditEntry{{
			Stage:   StageFetch,
			RuleID:  "FETCH-" + strings.ToUpper(kind.String()),
			Outcome: string(gate.IncompleteData),
		}},
	}
}

func cycleDate(snaps []Snapshot, now time.Time) time.Time {
	for _, s := range snaps {
		if !s.Key.AsOf().IsZero() {
			return s.Key.AsOf()
		}
	}
	return cache.Date(now)
}
