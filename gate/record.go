package gate

import (
	"maps"
	"slices"

	"github.com/jonwraymond/snapgate/maturity"
)

// AuditEntry records one gate decision.
type AuditEntry struct {
	Stage   string `json:"stage"`
	RuleID  string `json:"rule_id"`
	Outcome string `json:"outcome"`
}

// Record is one identity moving through the gate.
//
// Records are values: every stage returns a new version with its own Fields
// map and audit slice, so callers can keep earlier versions.
type Record struct {
	Identity string `json:"identity"`
	Category string `json:"category"`

	// Fields holds the numeric signals known for this record. A field is
	// present iff it has a key here.
	Fields map[string]float64 `json:"fields"`

	// RequiredFields is derived from Category on gate entry.
	RequiredFields []string `json:"required_fields"`

	HistoryDays int `json:"history_days"`

	Status             Status        `json:"status"`
	Reason             string        `json:"reason"`
	EscalationRequired bool          `json:"escalation_required"`
	Missing            []string      `json:"missing,omitempty"`
	Tier               maturity.Tier `json:"tier"`
	Audit              []AuditEntry  `json:"audit"`
}

// Has reports whether field is present.
func (r Record) Has(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

// Value returns a field's value and whether it is present.
func (r Record) Value(field string) (float64, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// MissingOf returns the fields from names that are absent, in order.
func (r Record) MissingOf(names []string) []string {
	var missing []string
	for _, f := range names {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Fields = maps.Clone(r.Fields)
	r.RequiredFields = slices.Clone(r.RequiredFields)
	r.Missing = slices.Clone(r.Missing)
	r.Audit = slices.Clone(r.Audit)
	return r
}

// LastAudit returns the most recent audit entry.
func (r Record) LastAudit() (AuditEntry, bool) {
	if len(r.Audit) == 0 {
		return AuditEntry{}, false
	}
	return r.Audit[len(r.Audit)-1], true
}

func (r Record) decide(stage, ruleID string, status Status, reason string) Record {
	r.Status = status
	r.Reason = reason
	r.Missing = r.MissingOf(r.RequiredFields)
	r.Audit = append(r.Audit, AuditEntry{Stage: stage, RuleID: ruleID, Outcome: string(status)})
	return r
}
