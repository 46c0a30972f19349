package gate

import (
	"context"
	"testing"
)

func TestValidationGate_Verdicts(t *testing.T) {
	g, err := NewValidationGate()
	if err != nil {
		t.Fatalf("NewValidationGate() error = %v", err)
	}

	records := []Record{
		{Identity: "R", Category: "income", Status: Ready},
		{Identity: "C", Category: "income", Status: Conditional},
		{Identity: "A", Category: "income", Status: AwaitConfirmation},
		{Identity: "B", Category: "income", Status: Blocked},
		{Identity: "I", Category: "income", Status: IncompleteData},
	}
	want := []Verdict{Valid, Watch, Watch, Reject, VerdictIncomplete}

	got := g.Validate(context.Background(), records)
	for i := range want {
		if got[i].Verdict != want[i] {
			t.Errorf("%s verdict = %s, want %s", records[i].Identity, got[i].Verdict, want[i])
		}
		last, _ := got[i].Record.LastAudit()
		if last.Stage != StageValidation || last.Outcome != string(want[i]) {
			t.Errorf("%s last audit = %+v", records[i].Identity, last)
		}
		if len(records[i].Audit) != 0 {
			t.Errorf("Validate mutated input audit for %s", records[i].Identity)
		}
	}
}

func TestValidationGate_RankWithinCategory(t *testing.T) {
	g, _ := NewValidationGate()
	records := []Record{
		{Identity: "A", Category: "income", Status: Ready, Fields: map[string]float64{"liquiditySignal": 600}},
		{Identity: "B", Category: "income", Status: Ready, Fields: map[string]float64{"liquiditySignal": 900}},
		{Identity: "C", Category: "directional", Status: Ready, Fields: map[string]float64{"liquiditySignal": 100}},
		{Identity: "D", Category: "income", Status: Blocked, Fields: map[string]float64{"liquiditySignal": 5000}},
		{Identity: "E", Category: "income", Status: Ready, Fields: map[string]float64{"liquiditySignal": 600}},
	}

	got := g.Validate(context.Background(), records)
	want := map[string]int{"A": 2, "B": 1, "C": 1, "D": 0, "E": 3}
	for _, v := range got {
		if v.Rank != want[v.Record.Identity] {
			t.Errorf("%s rank = %d, want %d", v.Record.Identity, v.Rank, want[v.Record.Identity])
		}
	}
}

// TestValidationGate_RankDoesNotAffectVerdict checks that a record's verdict is
// the same alone and among stronger peers.
func TestValidationGate_RankDoesNotAffectVerdict(t *testing.T) {
	g, _ := NewValidationGate()
	weak := Record{Identity: "W", Category: "income", Status: Ready, Fields: map[string]float64{"liquiditySignal": 501}}

	alone := g.Validate(context.Background(), []Record{weak})[0]
	crowded := g.Validate(context.Background(), []Record{
		{Identity: "S1", Category: "income", Status: Ready, Fields: map[string]float64{"liquiditySignal": 9000}},
		{Identity: "S2", Category: "income", Status: Ready, Fields: map[string]float64{"liquiditySignal": 8000}},
		weak,
	})[2]

	if alone.Verdict != crowded.Verdict || alone.Reason != crowded.Reason {
		t.Errorf("verdict alone = %s, crowded = %s", alone.Verdict, crowded.Verdict)
	}
	if alone.Rank != 1 || crowded.Rank != 3 {
		t.Errorf("ranks = %d/%d, want 1/3", alone.Rank, crowded.Rank)
	}
}

func TestNewValidationGate_InvalidRules(t *testing.T) {
	_, err := NewValidationGate(WithValidationRules(Ruleset[Verdict]{
		Default: Rule[Verdict]{ID: "D", Outcome: Verdict("MAYBE")},
	}))
	if err == nil {
		t.Error("NewValidationGate() error = nil, want invalid ruleset")
	}
}
