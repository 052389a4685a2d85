package flux

import (
	"testing"

	"github.com/polykernel/polykernel/internal/immune"
)

func TestDeriveState_Boundaries(t *testing.T) {
	cases := []struct {
		nu   float64
		want State
	}{
		{0.0, Collapsed},
		{0.09, Collapsed},
		{0.1, Demi},
		{0.49, Demi},
		{0.5, Quasi},
		{0.79, Quasi},
		{0.8, Polly},
		{1.0, Polly},
	}
	for _, c := range cases {
		if got := DeriveState(c.nu); got != c.want {
			t.Errorf("DeriveState(%v) = %v, want %v", c.nu, got, c.want)
		}
	}
}

func TestCapabilitySet_TierSizesDecreaseDownward(t *testing.T) {
	if len(CapabilitySet(Polly)) != 6 {
		t.Errorf("expected 6 capabilities for POLLY, got %d", len(CapabilitySet(Polly)))
	}
	if len(CapabilitySet(Collapsed)) != 1 {
		t.Errorf("expected 1 capability for COLLAPSED, got %d", len(CapabilitySet(Collapsed)))
	}
}

func TestEvolve_Determinism(t *testing.T) {
	p := DefaultParams()
	a := Evolve(0.5, 0.9, immune.Healthy, 7, p)
	b := Evolve(0.5, 0.9, immune.Healthy, 7, p)
	if a != b {
		t.Errorf("expected deterministic evolve, got %v vs %v", a, b)
	}
}

func TestEvolve_ClampedToUnitInterval(t *testing.T) {
	p := DefaultParams()
	p.Sigma = 10 // force large oscillation
	for step := 0; step < 50; step++ {
		nu := Evolve(0.5, 1.0, immune.Healthy, step, p)
		if nu < 0 || nu > 1 {
			t.Fatalf("nu out of [0,1] at step %d: %v", step, nu)
		}
	}
}

func TestContract_NeverNegative(t *testing.T) {
	got := Contract(0.05, 0.15)
	if got != 0 {
		t.Errorf("expected contraction floored at 0, got %v", got)
	}
}

func TestAccessiblePolyhedra_MonotonicInNu(t *testing.T) {
	low := len(AccessiblePolyhedra(0.0))
	high := len(AccessiblePolyhedra(1.0))
	if high < low {
		t.Errorf("expected more accessible polyhedra at higher flux: low=%d high=%d", low, high)
	}
	if high != 16 {
		t.Errorf("expected all 16 polyhedra accessible at nu=1.0, got %d", high)
	}
}

func TestEffectiveDimensionality_Range(t *testing.T) {
	d := EffectiveDimensionality(0.5)
	if d < 0 || d > 1 {
		t.Errorf("expected effective dimensionality in [0,1], got %v", d)
	}
}
