// Package maturity classifies subjects by how much history exists for them.
//
// A subject's tier depends only on its history depth, never on the quality
// of its current data. Gates use tiers as a hard floor: a category declares
// a minimum tier, and records below it wait for more history regardless of
// how well they score otherwise.
package maturity

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is an ordered maturity level. Higher tiers compare greater.
type Tier int

const (
	Nascent Tier = iota
	Early
	Established
	Mature
)

// ErrUnknownTier is returned by ParseTier for an unrecognized name.
var ErrUnknownTier = errors.New("maturity: unknown tier")

var tierNames = [...]string{"NASCENT", "EARLY", "ESTABLISHED", "MATURE"}

func (t Tier) String() string {
	if t < Nascent || t > Mature {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Tier(i), nil
		}
	}
	return Nascent, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// AtLeast reports whether t meets the minimum tier.
func (t Tier) AtLeast(minimum Tier) bool { return t >= minimum }

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Thresholds are the minimum days of history for each tier above Nascent.
type Thresholds struct {
	// Default: 20
	Early int
	// Default: 60
	Established int
	// Default: 120
	Mature int
}

// DefaultThresholds returns 20/60/120 days.
func DefaultThresholds() Thresholds {
	return Thresholds{Early: 20, Established: 60, Mature: 120}
}

// Validate checks that the thresholds are positive and strictly increasing.
func (th Thresholds) Validate() error {
	if th.Early <= 0 || th.Established <= th.Early || th.Mature <= th.Established {
		return fmt.Errorf("maturity: thresholds must be positive and increasing, got %d/%d/%d",
			th.Early, th.Established, th.Mature)
	}
	return nil
}

// Classifier assigns tiers from history depth.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a classifier. Zero thresholds take their defaults.
func NewClassifier(th Thresholds) (*Classifier, error) {
	def := DefaultThresholds()
	if th.Early == 0 {
		th.Early = def.Early
	}
	if th.Established == 0 {
		th.Established = def.Established
	}
	if th.Mature == 0 {
		th.Mature = def.Mature
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: th}, nil
}

// Thresholds returns the thresholds in effect.
func (c *Classifier) Thresholds() Thresholds { return c.thresholds }

// Classify returns the tier for a subject with historyDays of history.
// Negative depths classify as Nascent.
func (c *Classifier) Classify(historyDays int) Tier {
	switch {
	case historyDays >= c.thresholds.Mature:
		return Mature
	case historyDays >= c.thresholds.Established:
		return Established
	case historyDays >= c.thresholds.Early:
		return Early
	default:
		return Nascent
	}
}

// MinDays returns the history depth needed to reach tier t.
func (c *Classifier) MinDays(t Tier) int {
	switch t {
	case Mature:
		return c.thresholds.Mature
	case Established:
		return c.thresholds.Established
	case Early:
		return c.thresholds.Early
	default:
		return 0
	}
}
