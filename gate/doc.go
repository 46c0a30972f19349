// Package gate classifies records through ordered, first-match-wins rule sets.
//
// The execution gate (Engine) runs four stages over a batch of records:
//
//  1. Initial pass: the first matching rule of the initial ruleset sets the
//     status and may flag the record for escalation.
//  2. Escalation: flagged records are fetched from the supplemental source
//     through a dispatcher and the returned fields are merged in. Fields
//     already present are never overwritten. A failed fetch leaves the
//     record INCOMPLETE_DATA for this cycle.
//  3. Final pass: records that are not terminal are re-evaluated by the
//     final ruleset, which may only produce BLOCKED, CONDITIONAL or READY.
//  4. Maturity: READY and CONDITIONAL records whose history is below their
//     category's minimum tier are downgraded to AWAIT_CONFIRMATION.
//
// Every decision appends an AuditEntry to the record, in stage order.
//
// # Parity
//
// Predicates see exactly one Record. Nothing in this package lets a rule read
// another record or a batch aggregate, so a record's status and audit trail
// are the same whether it is evaluated alone or in a batch of thousands.
//
// # Validation
//
// ValidationGate is a second, independent gate with its own Verdict enum and
// ruleset. It consumes execution-gated records and attaches a within-category
// rank afterwards. The rank is descriptive and never feeds back into a
// verdict.
package gate
