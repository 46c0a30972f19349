package gate

// Status is the execution gate state of a record.
type Status string

const (
	// Blocked is a terminal hard failure.
	Blocked Status = "BLOCKED"
	// Ready is a terminal pass.
	Ready Status = "READY"
	// Conditional passes with caveats recorded in the reason.
	Conditional Status = "CONDITIONAL"
	// AwaitConfirmation needs supplemental data or more history.
	AwaitConfirmation Status = "AWAIT_CONFIRMATION"
	// IncompleteData is terminal for the current cycle only; the record may
	// re-enter on the next full run.
	IncompleteData Status = "INCOMPLETE_DATA"
)

// Terminal reports whether no later stage of the same cycle may change s.
func (s Status) Terminal() bool {
	return s == Blocked || s == Ready || s == IncompleteData
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case Blocked, Ready, Conditional, AwaitConfirmation, IncompleteData:
		return true
	}
	return false
}

// Audit stage names, in evaluation order.
const (
	StageInitial    = "initial"
	StageEscalation = "escalation"
	StageFinal      = "final"
	StageMaturity   = "maturity"
	StageValidation = "validation"
)
