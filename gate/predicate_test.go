package gate

import "testing"

func TestPredicates(t *testing.T) {
	r := Record{
		Identity:       "X",
		Category:       "income",
		Fields:         map[string]float64{"liquiditySignal": 500, "supplementalVol": 0.22},
		RequiredFields: []string{"liquiditySignal", "supplementalVol", "spreadWidth"},
		Status:         Conditional,
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"always", Always(), true},
		{"missing absent", Missing("spreadWidth"), true},
		{"missing present", Missing("liquiditySignal"), false},
		{"missing any", Missing("liquiditySignal", "spreadWidth"), true},
		{"all present", AllPresent("liquiditySignal", "supplementalVol"), true},
		{"all present with gap", AllPresent("liquiditySignal", "spreadWidth"), false},
		{"missing required", MissingRequired(), true},
		{"below true", Below("supplementalVol", 0.3), true},
		{"below equal", Below("liquiditySignal", 500), false},
		{"below absent", Below("spreadWidth", 1e9), false},
		{"above true", Above("liquiditySignal", 499), true},
		{"above absent", Above("spreadWidth", -1e9), false},
		{"at least equal", AtLeast("liquiditySignal", 500), true},
		{"at least absent", AtLeast("spreadWidth", 0), false},
		{"in category", InCategory("directional", "income"), true},
		{"not in category", InCategory("directional"), false},
		{"has status", HasStatus(Ready, Conditional), true},
		{"and", And(Always(), Missing("spreadWidth")), true},
		{"and short", And(Always(), Missing("liquiditySignal")), false},
		{"empty and", And(), true},
		{"or", Or(Missing("liquiditySignal"), InCategory("income")), true},
		{"empty or", Or(), false},
		{"not", Not(Always()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(r); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_CloneIsDeep(t *testing.T) {
	r := Record{
		Fields: map[string]float64{"a": 1},
		Audit:  []AuditEntry{{Stage: StageInitial, RuleID: "R", Outcome: string(Blocked)}},
	}
	c := r.Clone()
	c.Fields["a"] = 2
	c.Audit[0].RuleID = "changed"

	if r.Fields["a"] != 1 || r.Audit[0].RuleID != "R" {
		t.Error("Clone() shares state with the original")
	}
}
