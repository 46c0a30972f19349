package maturity

import (
	"errors"
	"testing"
)

func TestClassifier_Classify(t *testing.T) {
	c, err := NewClassifier(Thresholds{})
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	tests := []struct {
		days int
		want Tier
	}{
		{-5, Nascent},
		{0, Nascent},
		{19, Nascent},
		{20, Early},
		{59, Early},
		{60, Established},
		{119, Established},
		{120, Mature},
		{200, Mature},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.days); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestTier_AtLeast(t *testing.T) {
	if !Mature.AtLeast(Early) {
		t.Error("Mature.AtLeast(Early) = false")
	}
	if Early.AtLeast(Mature) {
		t.Error("Early.AtLeast(Mature) = true")
	}
	if !Established.AtLeast(Established) {
		t.Error("Established.AtLeast(Established) = false")
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range []Tier{Nascent, Early, Established, Mature} {
		got, err := ParseTier(tier.String())
		if err != nil || got != tier {
			t.Errorf("ParseTier(%q) = (%v, %v), want %v", tier.String(), got, err, tier)
		}
	}
	if got, _ := ParseTier(" mature "); got != Mature {
		t.Errorf("ParseTier(\" mature \") = %v, want MATURE", got)
	}
	if _, err := ParseTier("ANCIENT"); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("ParseTier(ANCIENT) error = %v, want ErrUnknownTier", err)
	}
}

func TestTier_TextRoundTrip(t *testing.T) {
	var tier Tier
	if err := tier.UnmarshalText([]byte("established")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	b, _ := tier.MarshalText()
	if string(b) != "ESTABLISHED" {
		t.Errorf("MarshalText() = %q, want ESTABLISHED", b)
	}
	if Tier(9).String() != "Tier(9)" {
		t.Errorf("String() of out-of-range tier = %q", Tier(9).String())
	}
}

func TestNewClassifier_InvalidThresholds(t *testing.T) {
	if _, err := NewClassifier(Thresholds{Early: 50, Established: 40, Mature: 120}); err == nil {
		t.Error("NewClassifier() with decreasing thresholds error = nil")
	}
}

func TestClassifier_MinDays(t *testing.T) {
	c, _ := NewClassifier(Thresholds{Early: 10, Established: 30, Mature: 90})
	for tier, want := range map[Tier]int{Nascent: 0, Early: 10, Established: 30, Mature: 90} {
		if got := c.MinDays(tier); got != want {
			t.Errorf("MinDays(%v) = %d, want %d", tier, got, want)
		}
		if got := c.Classify(c.MinDays(tier)); got != tier {
			t.Errorf("Classify(MinDays(%v)) = %v", tier, got)
		}
	}
}
