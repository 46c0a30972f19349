package gate

import (
	"fmt"
	"slices"

	"github.com/jonwraymond/snapgate/maturity"
)

// Category declares what a strategy family needs from a record.
type Category struct {
	// RequiredFields must all be present for a record to pass.
	RequiredFields []string

	// CriticalFields are required fields whose absence blocks the record
	// outright instead of marking its data incomplete.
	CriticalFields []string

	// SupplementalFields are required fields fetched on escalation from the
	// supplemental source instead of the primary one.
	SupplementalFields []string

	// MinTier is the minimum maturity tier for READY or CONDITIONAL.
	MinTier maturity.Tier
}

// Config is the gate configuration. Nothing in the evaluator hard-codes
// field names, categories or thresholds; they all come from here.
type Config struct {
	Categories map[string]Category

	// LiquidityField is the quality signal compared against the floors.
	// Default: "liquiditySignal"
	LiquidityField string

	// LiquidityFloor blocks records whose liquidity is below it.
	LiquidityFloor float64

	// ReadyLiquidity is the liquidity at or above which a complete record is
	// READY rather than CONDITIONAL.
	ReadyLiquidity float64

	// VolField is the supplemental volatility signal.
	// Default: "supplementalVol"
	VolField string

	// VolCeiling blocks records whose volatility is above it. Zero disables
	// the check.
	VolCeiling float64

	// Thresholds are the maturity tier boundaries in days of history.
	Thresholds maturity.Thresholds
}

// DefaultConfig returns the income and directional categories.
func DefaultConfig() Config {
	return Config{
		Categories: map[string]Category{
			"income": {
				RequiredFields:     []string{"liquiditySignal", "supplementalVol"},
				CriticalFields:     []string{"liquiditySignal"},
				SupplementalFields: []string{"supplementalVol"},
				MinTier:            maturity.Mature,
			},
			"directional": {
				RequiredFields: []string{"liquiditySignal"},
				CriticalFields: []string{"liquiditySignal"},
				MinTier:        maturity.Early,
			},
		},
		LiquidityField: "liquiditySignal",
		LiquidityFloor: 100,
		ReadyLiquidity: 500,
		VolField:       "supplementalVol",
		VolCeiling:     1.5,
		Thresholds:     maturity.DefaultThresholds(),
	}
}

func (c Config) withDefaults() Config {
	if c.LiquidityField == "" {
		c.LiquidityField = "liquiditySignal"
	}
	if c.VolField == "" {
		c.VolField = "supplementalVol"
	}
	return c
}

// Validate checks category declarations are consistent.
func (c Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: no categories", ErrInvalidConfig)
	}
	for name, cat := range c.Categories {
		if name == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidConfig)
		}
		for _, f := range cat.CriticalFields {
			if !slices.Contains(cat.RequiredFields, f) {
				return fmt.Errorf("%w: category %s: critical field %q is not required", ErrInvalidConfig, name, f)
			}
		}
		for _, f := range cat.SupplementalFields {
			if !slices.Contains(cat.RequiredFields, f) {
				return fmt.Errorf("%w: category %s: supplemental field %q is not required", ErrInvalidConfig, name, f)
			}
			if slices.Contains(cat.CriticalFields, f) {
				return fmt.Errorf("%w: category %s: field %q cannot be both critical and supplemental", ErrInvalidConfig, name, f)
			}
		}
		if cat.MinTier < maturity.Nascent || cat.MinTier > maturity.Mature {
			return fmt.Errorf("%w: category %s: invalid min tier %d", ErrInvalidConfig, name, cat.MinTier)
		}
	}
	if c.ReadyLiquidity < c.LiquidityFloor {
		return fmt.Errorf("%w: ready liquidity %v below floor %v", ErrInvalidConfig, c.ReadyLiquidity, c.LiquidityFloor)
	}
	if c.VolCeiling < 0 {
		return fmt.Errorf("%w: negative vol ceiling", ErrInvalidConfig)
	}
	return nil
}

// CategoryNames returns the configured categories, sorted.
func (c Config) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
