package gate

import "slices"

// Rule IDs of the default rulesets.
const (
	RuleUnknownCategory = "S1-CAT"
	RuleCriticalMissing = "S1-CRIT"
	RuleRequiredMissing = "S1-REQ"
	RuleLiquidityFloor  = "S1-LIQ"
	RuleNeedsEscalation = "S1-ESC"
	RuleSupplementReady = "S1-SUPP"
	RuleInitialDefault  = "S1-DEFAULT"

	RuleFinalMissing   = "F-REQ"
	RuleFinalLiquidity = "F-LIQ"
	RuleFinalVol       = "F-VOL"
	RuleFinalReady     = "F-READY"
	RuleFinalDefault   = "F-COND"
)

// DefaultInitialRules builds the stage 1 ruleset from cfg.
func DefaultInitialRules(cfg Config) Ruleset[Status] {
	cfg = cfg.withDefaults()
	category := func(r Record) Category { return cfg.Categories[r.Category] }

	return Ruleset[Status]{
		Name: "initial",
		Rules: []Rule[Status]{
			{
				ID:     RuleUnknownCategory,
				Reason: "category is not configured",
				When: func(r Record) bool {
					_, ok := cfg.Categories[r.Category]
					return !ok
				},
				Outcome: Blocked,
			},
			{
				ID:      RuleCriticalMissing,
				Reason:  "critical field missing",
				When:    func(r Record) bool { return len(r.MissingOf(category(r).CriticalFields)) > 0 },
				Outcome: Blocked,
			},
			{
				ID:     RuleRequiredMissing,
				Reason: "required field missing from primary source",
				When: func(r Record) bool {
					supplemental := category(r).SupplementalFields
					for _, f := range r.MissingOf(r.RequiredFields) {
						if !slices.Contains(supplemental, f) {
							return true
						}
					}
					return false
				},
				Outcome: IncompleteData,
			},
			{
				ID:      RuleLiquidityFloor,
				Reason:  "liquidity below floor",
				When:    Below(cfg.LiquidityField, cfg.LiquidityFloor),
				Outcome: Blocked,
			},
			{
				ID:       RuleNeedsEscalation,
				Reason:   "supplemental signal not yet fetched",
				When:     func(r Record) bool { return len(r.MissingOf(category(r).SupplementalFields)) > 0 },
				Outcome:  AwaitConfirmation,
				Escalate: true,
			},
			{
				ID:     RuleSupplementReady,
				Reason: "supplemental signal already present",
				When: func(r Record) bool {
					supplemental := category(r).SupplementalFields
					return len(supplemental) > 0 && AllPresent(supplemental...)(r)
				},
				Outcome: AwaitConfirmation,
			},
		},
		Default: Rule[Status]{
			ID:      RuleInitialDefault,
			Reason:  "awaiting final pass",
			Outcome: AwaitConfirmation,
		},
	}
}

// DefaultFinalRules builds the stage 3 ruleset from cfg.
func DefaultFinalRules(cfg Config) Ruleset[Status] {
	cfg = cfg.withDefaults()

	volTooHigh := func(Record) bool { return false }
	if cfg.VolCeiling > 0 {
		volTooHigh = Above(cfg.VolField, cfg.VolCeiling)
	}

	return Ruleset[Status]{
		Name: "final",
		Rules: []Rule[Status]{
			{
				ID:      RuleFinalMissing,
				Reason:  "required field missing after escalation",
				When:    MissingRequired(),
				Outcome: Blocked,
			},
			{
				ID:      RuleFinalLiquidity,
				Reason:  "liquidity below floor",
				When:    Below(cfg.LiquidityField, cfg.LiquidityFloor),
				Outcome: Blocked,
			},
			{
				ID:      RuleFinalVol,
				Reason:  "supplemental volatility above ceiling",
				When:    volTooHigh,
				Outcome: Blocked,
			},
			{
				ID:      RuleFinalReady,
				Reason:  "all required fields present and liquidity at ready level",
				When:    AtLeast(cfg.LiquidityField, cfg.ReadyLiquidity),
				Outcome: Ready,
			},
		},
		Default: Rule[Status]{
			ID:      RuleFinalDefault,
			Reason:  "liquidity below ready level",
			Outcome: Conditional,
		},
	}
}
