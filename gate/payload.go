package gate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// HistoryField is the payload key carrying history depth in days. It
// populates Record.HistoryDays and is never stored as a field.
const HistoryField = "historyDays"

// Payload is a decoded source payload.
type Payload struct {
	Fields      map[string]float64
	HistoryDays int
	HasHistory  bool
}

// DecodePayload decodes a JSON object of numeric signals. Null and
// non-numeric values are treated as absent. A history depth that is not a
// whole number of days in [0, math.MaxInt32] makes the payload invalid.
func DecodePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if raw == nil {
		return Payload{}, ErrInvalidPayload
	}

	p := Payload{Fields: make(map[string]float64, len(raw))}
	for k, v := range raw {
		num, ok := v.(json.Number)
		if !ok {
			continue
		}
		f, err := num.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if k == HistoryField {
			if f < 0 || f > math.MaxInt32 || f != math.Trunc(f) {
				return Payload{}, fmt.Errorf("%w: %s %v", ErrInvalidPayload, HistoryField, f)
			}
			p.HistoryDays = int(f)
			p.HasHistory = true
			continue
		}
		p.Fields[k] = f
	}
	return p, nil
}
