package gate

import (
	"cmp"
	"context"
	"slices"

	"github.com/jonwraymond/snapgate/observe"
)

// Verdict is the validation gate state.
type Verdict string

const (
	Valid             Verdict = "VALID"
	Watch             Verdict = "WATCH"
	Reject            Verdict = "REJECT"
	VerdictIncomplete Verdict = "INCOMPLETE_DATA"
)

// Validation rule IDs.
const (
	RuleValidationIncomplete = "V-INCOMPLETE"
	RuleValidationBlocked    = "V-BLOCKED"
	RuleValidationAwaiting   = "V-AWAIT"
	RuleValidationCaveats    = "V-COND"
	RuleValidationDefault    = "V-VALID"
)

// DefaultValidationRules maps execution statuses onto verdicts.
func DefaultValidationRules() Ruleset[Verdict] {
	return Ruleset[Verdict]{
		Name: "validation",
		Rules: []Rule[Verdict]{
			{ID: RuleValidationIncomplete, Reason: "data incomplete this cycle", When: HasStatus(IncompleteData), Outcome: VerdictIncomplete},
			{ID: RuleValidationBlocked, Reason: "blocked by execution gate", When: HasStatus(Blocked), Outcome: Reject},
			{ID: RuleValidationAwaiting, Reason: "awaiting confirmation", When: HasStatus(AwaitConfirmation), Outcome: Watch},
			{ID: RuleValidationCaveats, Reason: "passed with caveats", When: HasStatus(Conditional), Outcome: Watch},
		},
		Default: Rule[Verdict]{ID: RuleValidationDefault, Reason: "passed execution gate", Outcome: Valid},
	}
}

// Validated is a record with its validation verdict.
type Validated struct {
	Record  Record  `json:"record"`
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`

	// Rank orders VALID records within their category by the rank field,
	// starting at 1. Zero means unranked. Rank is assigned after every
	// verdict is final and never influences one.
	Rank int `json:"rank,omitempty"`
}

// ValidationGate is the second gate, applied to execution-gated records.
type ValidationGate struct {
	rules     Ruleset[Verdict]
	rankField string
	metrics   observe.Metrics
}

// ValidationOption configures a ValidationGate.
type ValidationOption func(*ValidationGate)

// WithValidationRules replaces the default ruleset.
func WithValidationRules(rs Ruleset[Verdict]) ValidationOption {
	return func(g *ValidationGate) { g.rules = rs }
}

// WithRankField sets the field VALID records are ranked by, descending.
// Default: "liquiditySignal"
func WithRankField(field string) ValidationOption {
	return func(g *ValidationGate) {
		if field != "" {
			g.rankField = field
		}
	}
}

// WithValidationMetrics sets the metrics sink for verdicts.
func WithValidationMetrics(m observe.Metrics) ValidationOption {
	return func(g *ValidationGate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewValidationGate builds a validation gate.
func NewValidationGate(opts ...ValidationOption) (*ValidationGate, error) {
	g := &ValidationGate{
		rules:     DefaultValidationRules(),
		rankField: "liquiditySignal",
		metrics:   observe.NopMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.rules.Validate(Valid, Watch, Reject, VerdictIncomplete); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate assigns a verdict to every record, then ranks VALID records
// within each category. Output order matches input order.
func (g *ValidationGate) Validate(ctx context.Context, records []Record) []Validated {
	out := make([]Validated, len(records))
	for i, r := range records {
		rule := g.rules.Match(r)
		r = r.Clone()
		r.Audit = append(r.Audit, AuditEntry{Stage: StageValidation, RuleID: rule.ID, Outcome: string(rule.Outcome)})
		out[i] = Validated{Record: r, Verdict: rule.Outcome, Reason: rule.Reason}
		g.metrics.RecordGateOutcome(ctx, StageValidation, r.Category, string(rule.Outcome))
	}
	g.rank(out)
	return out
}

func (g *ValidationGate) rank(out []Validated) {
	byCategory := make(map[string][]int)
	for i, v := range out {
		if v.Verdict == Valid {
			byCategory[v.Record.Category] = append(byCategory[v.Record.Category], i)
		}
	}
	for _, idx := range byCategory {
		slices.SortStableFunc(idx, func(a, b int) int {
			va, _ := out[a].Record.Value(g.rankField)
			vb, _ := out[b].Record.Value(g.rankField)
			if c := cmp.Compare(vb, va); c != 0 {
				return c
			}
			return cmp.Compare(out[a].Record.Identity, out[b].Record.Identity)
		})
		for rank, i := range idx {
			out[i].Rank = rank + 1
		}
	}
}
