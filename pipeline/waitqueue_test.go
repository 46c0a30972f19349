package pipeline

import (
	"testing"

	"github.com/jonwraymond/snapgate/gate"
)

func cycleOf(statuses map[string]gate.Status) Cycle {
	var c Cycle
	for id, s := range statuses {
		c.Records = append(c.Records, gate.Record{Identity: id, Category: "income", Status: s, Reason: "waiting"})
	}
	return c
}

func TestWaitQueue_DefaultLimit(t *testing.T) {
	if q := NewWaitQueue(0); q.maxCycles != DefaultMaxWaitCycles {
		t.Errorf("maxCycles = %d, want %d", q.maxCycles, DefaultMaxWaitCycles)
	}
}

func TestWaitQueue_Update(t *testing.T) {
	q := NewWaitQueue(2)

	if got := q.Update(cycleOf(map[string]gate.Status{
		"A": gate.AwaitConfirmation,
		"B": gate.AwaitConfirmation,
		"C": gate.Ready,
	})); len(got) != 0 {
		t.Fatalf("first Update() exhausted = %v, want none", got)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	// B resolves; A waits a second cycle and hits the limit.
	exhausted := q.Update(cycleOf(map[string]gate.Status{
		"A": gate.AwaitConfirmation,
		"B": gate.Ready,
	}))
	if len(exhausted) != 1 || exhausted[0].Identity != "A" || exhausted[0].Cycles != 2 {
		t.Errorf("exhausted = %+v, want A after 2 cycles", exhausted)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestWaitQueue_PendingAndRequest(t *testing.T) {
	q := NewWaitQueue(5)
	q.Update(cycleOf(map[string]gate.Status{
		"ZED":   gate.AwaitConfirmation,
		"ALPHA": gate.AwaitConfirmation,
		"MID":   gate.Blocked,
	}))

	pending := q.Pending()
	if len(pending) != 2 || pending[0].Identity != "ALPHA" || pending[1].Identity != "ZED" {
		t.Fatalf("Pending() = %+v, want ALPHA, ZED", pending)
	}

	req := q.Request(Request{Scope: "2026-11-20", Category: "directional"})
	if len(req.Identities) != 2 || req.Identities[0] != "ALPHA" {
		t.Errorf("Request().Identities = %v", req.Identities)
	}
	if req.Scope != "2026-11-20" {
		t.Errorf("Request().Scope = %q, want base scope", req.Scope)
	}
	if got := req.categoryOf("ZED"); got != "income" {
		t.Errorf("categoryOf(ZED) = %q, want recorded category income", got)
	}
}
