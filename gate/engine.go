package gate

import (
	"context"
	"fmt"
	"slices"

	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/maturity"
	"github.com/jonwraymond/snapgate/observe"
)

// Engine is the execution gate.
//
// Contract:
//   - Concurrency: safe for concurrent use; Evaluate does not mutate its input.
//   - Parity: a record's result depends only on that record, its
//     supplemental fetch, and the configuration.
//   - Errors: Evaluate never fails. Escalation failures become
//     INCOMPLETE_DATA on the affected records.
type Engine struct {
	cfg        Config
	initial    Ruleset[Status]
	final      Ruleset[Status]
	classifier *maturity.Classifier
	escalation *escalation
	logger     observe.Logger
	metrics    observe.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithInitialRules replaces the stage 1 ruleset.
func WithInitialRules(rs Ruleset[Status]) EngineOption {
	return func(e *Engine) { e.initial = rs }
}

// WithFinalRules replaces the stage 3 ruleset.
func WithFinalRules(rs Ruleset[Status]) EngineOption {
	return func(e *Engine) { e.final = rs }
}

// WithEscalation routes stage 2 fetches through d using fetch.
func WithEscalation(d *dispatch.Dispatcher, fetch dispatch.FetchFunc) EngineOption {
	return func(e *Engine) {
		if d != nil && fetch != nil {
			e.escalation = &escalation{dispatcher: d, fetch: fetch}
		}
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l observe.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEngineMetrics sets the metrics sink for stage outcomes.
func WithEngineMetrics(m observe.Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewEngine validates cfg and the rulesets and builds an engine.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	classifier, err := maturity.NewClassifier(cfg.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e := &Engine{
		cfg:        cfg,
		initial:    DefaultInitialRules(cfg),
		final:      DefaultFinalRules(cfg),
		classifier: classifier,
		logger:     observe.NopLogger(),
		metrics:    observe.NopMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.initial.Validate(Blocked, Ready, Conditional, AwaitConfirmation, IncompleteData); err != nil {
		return nil, err
	}
	for _, rule := range slices.Concat(e.initial.Rules, []Rule[Status]{e.initial.Default}) {
		if rule.Escalate && rule.Outcome != AwaitConfirmation {
			return nil, fmt.Errorf("%w: rule %q escalates with outcome %s", ErrInvalidRuleset, rule.ID, rule.Outcome)
		}
	}
	if err := e.final.Validate(Blocked, Conditional, Ready); err != nil {
		return nil, err
	}

	e.logger = e.logger.With(observe.F("component", "gate"))
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Classifier returns the maturity classifier used in stage 4.
func (e *Engine) Classifier() *maturity.Classifier { return e.classifier }

// Evaluate runs all four stages and returns new record versions in input
// order.
func (e *Engine) Evaluate(ctx context.Context, records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = e.initialPass(ctx, e.enter(r))
	}

	e.escalate(ctx, out)

	for i := range out {
		out[i] = e.finalPass(ctx, out[i])
		out[i] = e.maturityPass(ctx, out[i])
	}

	e.logSummary(ctx, out)
	return out
}

// EvaluateOne evaluates a single record.
func (e *Engine) EvaluateOne(ctx context.Context, r Record) Record {
	return e.Evaluate(ctx, []Record{r})[0]
}

// enter copies r and derives its required fields from its category.
func (e *Engine) enter(r Record) Record {
	r = r.Clone()
	if r.Fields == nil {
		r.Fields = map[string]float64{}
	}
	r.RequiredFields = append([]string(nil), e.cfg.Categories[r.Category].RequiredFields...)
	r.Status = ""
	r.Reason = ""
	r.EscalationRequired = false
	r.Missing = r.MissingOf(r.RequiredFields)
	return r
}

func (e *Engine) initialPass(ctx context.Context, r Record) Record {
	rule := e.initial.Match(r)
	r = r.decide(StageInitial, rule.ID, rule.Outcome, rule.Reason)
	r.EscalationRequired = rule.Escalate
	e.metrics.RecordGateOutcome(ctx, StageInitial, r.Category, string(r.Status))
	return r
}

func (e *Engine) finalPass(ctx context.Context, r Record) Record {
	if r.Status.Terminal() {
		return r
	}
	rule := e.final.Match(r)
	r = r.Clone().decide(StageFinal, rule.ID, rule.Outcome, rule.Reason)
	e.metrics.RecordGateOutcome(ctx, StageFinal, r.Category, string(r.Status))
	return r
}

// Maturity rule IDs.
const (
	RuleMaturityBelow = "MAT-TIER"
	RuleMaturityOK    = "MAT-OK"
)

func (e *Engine) maturityPass(ctx context.Context, r Record) Record {
	r.Tier = e.classifier.Classify(r.HistoryDays)
	if r.Status != Ready && r.Status != Conditional {
		return r
	}

	minTier := e.cfg.Categories[r.Category].MinTier
	r = r.Clone()
	if r.Tier.AtLeast(minTier) {
		r = r.decide(StageMaturity, RuleMaturityOK, r.Status, r.Reason)
	} else {
		reason := fmt.Sprintf("maturity %s below %s minimum %s (%d days of history, need %d)",
			r.Tier, r.Category, minTier, r.HistoryDays, e.classifier.MinDays(minTier))
		r = r.decide(StageMaturity, RuleMaturityBelow, AwaitConfirmation, reason)
	}
	e.metrics.RecordGateOutcome(ctx, StageMaturity, r.Category, string(r.Status))
	return r
}

func (e *Engine) logSummary(ctx context.Context, records []Record) {
	counts := make(map[Status]int)
	for _, r := range records {
		counts[r.Status]++
	}
	e.logger.Info(ctx, "gate evaluated",
		observe.F("records", len(records)),
		observe.F("ready", counts[Ready]),
		observe.F("conditional", counts[Conditional]),
		observe.F("awaiting", counts[AwaitConfirmation]),
		observe.F("blocked", counts[Blocked]),
		observe.F("incomplete", counts[IncompleteData]),
	)
}
