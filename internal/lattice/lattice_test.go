package lattice

import (
	"math"
	"testing"
)

func TestInvert3x3_Identity(t *testing.T) {
	m := identity3x3()
	inv, ok := Invert3x3(m)
	if !ok {
		t.Fatal("expected identity matrix to invert")
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(inv[i][j]-want) > 1e-9 {
				t.Errorf("inv[%d][%d] = %v, want %v", i, j, inv[i][j], want)
			}
		}
	}
}

func TestInvert3x3_Singular(t *testing.T) {
	m := [3][3]float64{{1, 2, 3}, {2, 4, 6}, {1, 1, 1}} // rows 0,1 linearly dependent
	inv, ok := Invert3x3(m)
	if ok {
		t.Fatal("expected singular matrix to report ok=false")
	}
	if inv != identity3x3() {
		t.Errorf("expected identity fallback, got %v", inv)
	}
}

func TestInvert3x3_RoundTrip(t *testing.T) {
	m := [3][3]float64{{2, 0, 0}, {0, 3, 0}, {0, 0, 4}}
	inv, ok := Invert3x3(m)
	if !ok {
		t.Fatal("expected diagonal matrix to invert")
	}
	v := [3]float64{1, 1, 1}
	mv := mul3x3Vec(m, v)
	roundTrip := mul3x3Vec(inv, mv)
	for i := 0; i < 3; i++ {
		if math.Abs(roundTrip[i]-v[i]) > 1e-9 {
			t.Errorf("round trip failed at %d: got %v want %v", i, roundTrip[i], v[i])
		}
	}
}

func TestStaticProject_AcceptanceBoundary(t *testing.T) {
	zero := [6]float64{}
	res := StaticProject(zero, AcceptanceRadius)
	if !res.Accepted {
		t.Errorf("expected origin to be accepted")
	}
	if res.Tile != TileThick {
		t.Errorf("expected origin to be a thick tile, got %v", res.Tile)
	}
}

func TestRun_ValidatedRequiresAllThree(t *testing.T) {
	zero := [6]float64{}
	shift := PhasonShift{Direction: [3]float64{1, 0, 0}, Magnitude: 0}
	res := Run(zero, shift, AcceptanceRadius, 0.5, 0.5)
	if !res.Validated {
		t.Errorf("expected zero-shift origin pass to validate, got coherence=%v accepted=%v structurePreserved=%v",
			res.Coherence, res.Static.Accepted, res.Dynamic.StructurePreserved)
	}
}

func TestRun_LargePhasonBreaksStructure(t *testing.T) {
	zero := [6]float64{}
	shift := PhasonShift{Direction: [3]float64{1, 0, 0}, Magnitude: 10.0}
	res := Run(zero, shift, AcceptanceRadius, 0.5, 0.5)
	if res.Dynamic.StructurePreserved {
		t.Errorf("expected large phason magnitude to break structure preservation")
	}
	if res.Validated {
		t.Errorf("expected validation to fail when structure is not preserved")
	}
}

func TestThreatPhason_ClipsToUnitInterval(t *testing.T) {
	shift := ThreatPhason(nil, 2.0, 1.0, 1.0, 0)
	if shift.Magnitude > 1.0+1e-9 {
		t.Errorf("expected magnitude clipped by threat<=1, got %v", shift.Magnitude)
	}
}

func TestThreatPhason_NoAnomalyDimsRotates(t *testing.T) {
	a := ThreatPhason(nil, 0.5, 1.0, 1.0, 0)
	b := ThreatPhason(nil, 0.5, 1.0, 1.0, 1)
	if a.Direction == b.Direction {
		t.Errorf("expected direction to rotate across steps when no anomaly dims present")
	}
}
