package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/snapgate/dispatch"
	"github.com/jonwraymond/snapgate/observe"
)

// Escalation rule IDs.
const (
	RuleEscalationMerged      = "ESC-MERGE"
	RuleEscalationFailed      = "ESC-FETCH"
	RuleEscalationUnavailable = "ESC-NONE"
)

type escalation struct {
	dispatcher *dispatch.Dispatcher
	fetch      dispatch.FetchFunc
}

// escalate runs stage 2 in place over the records flagged by stage 1. Each
// record gets its own task, so a record's merge depends only on its own fetch.
func (e *Engine) escalate(ctx context.Context, records []Record) {
	var idx []int
	for i, r := range records {
		if r.EscalationRequired {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}

	if e.escalation == nil {
		for _, i := range idx {
			records[i] = e.failEscalation(ctx, records[i], RuleEscalationUnavailable, "no supplemental source configured")
		}
		return
	}

	tasks := make([]dispatch.Task, len(idx))
	for j, i := range idx {
		r := records[i]
		tasks[j] = dispatch.Task{
			SubjectID: r.Identity,
			Params: map[string]any{
				"category": r.Category,
				"fields":   strings.Join(r.MissingOf(e.cfg.Categories[r.Category].SupplementalFields), ","),
			},
		}
	}

	// RunBatch returns one result per task even when ctx ends; cancelled
	// tasks fail below like any other fetch.
	results, _ := e.escalation.dispatcher.RunBatch(ctx, tasks, e.escalation.fetch)

	for j, i := range idx {
		res := results[j]
		if !res.OK() {
			records[i] = e.failEscalation(ctx, records[i], RuleEscalationFailed,
				fmt.Sprintf("supplemental fetch failed (%s): %v", res.Kind(), res.Err))
			continue
		}
		payload, err := DecodePayload(res.Payload)
		if err != nil {
			records[i] = e.failEscalation(ctx, records[i], RuleEscalationFailed,
				fmt.Sprintf("supplemental payload unreadable: %v", err))
			continue
		}
		records[i] = e.merge(ctx, records[i], payload)
	}
}

// merge adds supplemental fields without overwriting existing ones.
func (e *Engine) merge(ctx context.Context, r Record, p Payload) Record {
	r = r.Clone()
	added := 0
	for k, v := range p.Fields {
		if _, exists := r.Fields[k]; !exists {
			r.Fields[k] = v
			added++
		}
	}
	r.EscalationRequired = false
	r = r.decide(StageEscalation, RuleEscalationMerged, r.Status, r.Reason)
	e.metrics.RecordGateOutcome(ctx, StageEscalation, r.Category, string(r.Status))
	e.logger.Debug(ctx, "supplemental fields merged",
		observe.F("identity", r.Identity),
		observe.F("added", added),
	)
	return r
}

func (e *Engine) failEscalation(ctx context.Context, r Record, ruleID, reason string) Record {
	r = r.Clone()
	r.EscalationRequired = false
	r = r.decide(StageEscalation, ruleID, IncompleteData, reason)
	e.metrics.RecordGateOutcome(ctx, StageEscalation, r.Category, string(r.Status))
	e.logger.Warn(ctx, "escalation failed",
		observe.F("identity", r.Identity),
		observe.F("reason", reason),
	)
	return r
}
