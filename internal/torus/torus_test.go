package torus

import (
	"math"
	"testing"
)

func TestEvaluate_ContradictoryPolaritySnaps(t *testing.T) {
	current := Angles{Theta: 0, Phi: 0, Rho: 0, Sigma: 0}
	// First event establishes a polarity of -1 on domain 5.
	first := Evaluate(current, MemoryEvent{Domain: 5, Sequence: 1, Polarity: -1, Authority: 0.9}, DefaultSnapThreshold)
	if first.Snap {
		t.Fatalf("did not expect the first write to snap: divergence=%v", first.Divergence)
	}
	committed := first.Candidate

	// Second event flips polarity to +1 on the same domain immediately after.
	second := Evaluate(committed, MemoryEvent{Domain: 5, Sequence: 2, Polarity: 1, Authority: 0.9}, DefaultSnapThreshold)
	if !second.Snap {
		t.Errorf("expected contradictory polarity to snap, divergence=%v", second.Divergence)
	}
	if second.Divergence <= DefaultSnapThreshold {
		t.Errorf("expected divergence > %v, got %v", DefaultSnapThreshold, second.Divergence)
	}
}

func TestCandidate_ThetaRange(t *testing.T) {
	current := Angles{}
	cand := Candidate(current, MemoryEvent{Domain: 20, Sequence: 0, Polarity: 0, Authority: 0})
	if cand.Theta < 0 || cand.Theta >= 2*math.Pi {
		t.Errorf("expected theta in [0,2pi), got %v", cand.Theta)
	}
}

func TestDivergence_IdenticalStateIsZero(t *testing.T) {
	a := Angles{Theta: 1, Phi: 2, Rho: 0.5, Sigma: 3}
	if d := Divergence(a, a); math.Abs(d) > 1e-12 {
		t.Errorf("expected zero divergence for identical states, got %v", d)
	}
}

func TestDivergence_WrapsAround(t *testing.T) {
	a := Angles{Theta: 0.01}
	b := Angles{Theta: 2*math.Pi - 0.01}
	d := Divergence(a, b)
	if d > 0.1 {
		t.Errorf("expected small divergence for angles near the wrap point, got %v", d)
	}
}
