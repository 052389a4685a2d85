package manifold

import (
	"math"
	"testing"
)

func TestSafePoincareEmbed_ZeroVector(t *testing.T) {
	out := SafePoincareEmbed([]float64{0, 0, 0})
	for i, x := range out {
		if x != 0 {
			t.Errorf("component %d: expected 0, got %f", i, x)
		}
	}
}

func TestSafePoincareEmbed_BoundaryContainment(t *testing.T) {
	v := make([]float64, 21)
	for i := range v {
		v[i] = 10.0 // far outside the ball
	}
	out := SafePoincareEmbed(v)
	if n := Norm(out); n >= POINCARE_MAX_NORM+1e-12 {
		t.Errorf("expected norm <= %v, got %v", POINCARE_MAX_NORM, n)
	}
}

func TestSafePoincareEmbed_PreservesDirection(t *testing.T) {
	v := []float64{1, 0, 0}
	out := SafePoincareEmbed(v)
	if out[1] != 0 || out[2] != 0 {
		t.Errorf("expected direction preserved, got %v", out)
	}
	if out[0] <= 0 {
		t.Errorf("expected positive first component, got %v", out[0])
	}
}

func TestHyperbolicDistance_SamePoint(t *testing.T) {
	u := []float64{0.1, 0.2, 0.3}
	d := HyperbolicDistance(u, u)
	if math.Abs(d) > 1e-9 {
		t.Errorf("expected distance 0 for identical points, got %v", d)
	}
}

func TestHyperbolicDistance_NeverNaN(t *testing.T) {
	u := []float64{0.999999999, 0, 0}
	v := []float64{-0.999999999, 0, 0}
	d := HyperbolicDistance(u, v)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		t.Errorf("expected finite distance near boundary, got %v", d)
	}
}

func TestApplyGoldenWeighting(t *testing.T) {
	v := []float64{1, 1, 1}
	out := ApplyGoldenWeighting(v)
	if out[0] != 1 {
		t.Errorf("expected out[0]=1, got %v", out[0])
	}
	if math.Abs(out[1]-PHI) > 1e-9 {
		t.Errorf("expected out[1]=phi, got %v", out[1])
	}
	if math.Abs(out[2]-PHI*PHI) > 1e-9 {
		t.Errorf("expected out[2]=phi^2, got %v", out[2])
	}
}

func TestHarmonicDuality(t *testing.T) {
	cases := []struct {
		d, r float64
	}{
		{0, 1}, {0.5, 2}, {3, 0.1}, {10, 100}, {0, 1000},
	}
	for _, c := range cases {
		a := HarmonicScale(c.d, c.r)
		b := HarmonicScale(c.d, 1/c.r)
		if math.Abs(a*b-1) > 1e-9 {
			t.Errorf("harmonic duality violated for d=%v r=%v: a=%v b=%v a*b=%v", c.d, c.r, a, b, a*b)
		}
	}
}
