package gate

import (
	"fmt"
	"slices"
)

// Decision is the type a ruleset decides: Status for the execution gate,
// Verdict for the validation gate.
type Decision interface {
	~string
}

// Rule maps a predicate to an outcome.
type Rule[S Decision] struct {
	ID      string
	Reason  string
	When    Predicate
	Outcome S

	// Escalate flags the record for a supplemental fetch. Only meaningful
	// in the execution gate's initial ruleset.
	Escalate bool
}

// Ruleset is an ordered rule list. Evaluation stops at the first rule whose
// predicate matches; Default applies when none does. Order is part of the
// contract because rules may overlap.
type Ruleset[S Decision] struct {
	Name    string
	Rules   []Rule[S]
	Default Rule[S]
}

// Match returns the first rule matching r, or Default.
func (rs Ruleset[S]) Match(r Record) Rule[S] {
	for _, rule := range rs.Rules {
		if rule.When(r) {
			return rule
		}
	}
	return rs.Default
}

// Validate checks rule IDs are set and unique, predicates are non-nil, and
// every outcome is one of allowed.
func (rs Ruleset[S]) Validate(allowed ...S) error {
	seen := make(map[string]bool, len(rs.Rules)+1)
	check := func(rule Rule[S], isDefault bool) error {
		if rule.ID == "" {
			return fmt.Errorf("%w: %s: rule without ID", ErrInvalidRuleset, rs.Name)
		}
		if seen[rule.ID] {
			return fmt.Errorf("%w: %s: duplicate rule ID %q", ErrInvalidRuleset, rs.Name, rule.ID)
		}
		seen[rule.ID] = true
		if !isDefault && rule.When == nil {
			return fmt.Errorf("%w: %s: rule %q has no predicate", ErrInvalidRuleset, rs.Name, rule.ID)
		}
		if !slices.Contains(allowed, rule.Outcome) {
			return fmt.Errorf("%w: %s: rule %q outcome %q not allowed", ErrInvalidRuleset, rs.Name, rule.ID, rule.Outcome)
		}
		return nil
	}

	for _, rule := range rs.Rules {
		if err := check(rule, false); err != nil {
			return err
		}
	}
	return check(rs.Default, true)
}
