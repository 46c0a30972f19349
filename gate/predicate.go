package gate

import "slices"

// Predicate is a pure function of one record. Predicates must check that a
// field is present before reading it; the helpers below all do.
type Predicate func(r Record) bool

// Always matches every record.
func Always() Predicate {
	return func(Record) bool { return true }
}

// Missing matches records lacking any of fields.
func Missing(fields ...string) Predicate {
	return func(r Record) bool {
		for _, f := range fields {
			if !r.Has(f) {
				return true
			}
		}
		return false
	}
}

// AllPresent matches records that have every one of fields.
func AllPresent(fields ...string) Predicate {
	return Not(Missing(fields...))
}

// MissingRequired matches records lacking any of their RequiredFields.
func MissingRequired() Predicate {
	return func(r Record) bool {
		return len(r.MissingOf(r.RequiredFields)) > 0
	}
}

// Below matches records where field is present and less than threshold.
func Below(field string, threshold float64) Predicate {
	return func(r Record) bool {
		v, ok := r.Value(field)
		return ok && v < threshold
	}
}

// Above matches records where field is present and greater than threshold.
func Above(field string, threshold float64) Predicate {
	return func(r Record) bool {
		v, ok := r.Value(field)
		return ok && v > threshold
	}
}

// AtLeast matches records where field is present and at least threshold.
func AtLeast(field string, threshold float64) Predicate {
	return func(r Record) bool {
		v, ok := r.Value(field)
		return ok && v >= threshold
	}
}

// InCategory matches records in any of categories.
func InCategory(categories ...string) Predicate {
	return func(r Record) bool {
		return slices.Contains(categories, r.Category)
	}
}

// HasStatus matches records whose current status is one of statuses.
func HasStatus(statuses ...Status) Predicate {
	return func(r Record) bool {
		return slices.Contains(statuses, r.Status)
	}
}

// And matches when every predicate matches. And() matches everything.
func And(preds ...Predicate) Predicate {
	return func(r Record) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Or matches when any predicate matches. Or() matches nothing.
func Or(preds ...Predicate) Predicate {
	return func(r Record) bool {
		for _, p := range preds {
			if p(r) {
				return true
			}
		}
		return false
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(r Record) bool { return !p(r) }
}
