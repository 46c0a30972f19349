package gate

import "errors"

// Sentinel errors for gate construction and payload decoding.
var (
	ErrInvalidConfig  = errors.New("gate: invalid config")
	ErrInvalidRuleset = errors.New("gate: invalid ruleset")
	ErrInvalidPayload = errors.New("gate: payload is not a JSON object")
)
