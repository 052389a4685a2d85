// monitor.go — geodesic deviation / curvature intrusion detection and the
// Langues mapping.
//
// The expected geodesic position for a step is the polyhedron centroid for
// that step, but no explicit 6D coordinates are fixed for it (an
// implementer choice, see DESIGN.md). This implementation derives a
// deterministic centroid per polyhedron index by
// sampling six phases π/3 apart, starting at a golden-angle-spaced offset,
// so each centroid has norm (0.1 + 0.9·min_flux)/√2 — this keeps the
// centroids fixed constants of the system (reproducible across
// implementations that use the same construction) while giving later
// waypoints, which require higher flux to reach, a proportionally larger
// radius, consistent with "deeper" polyhedra representing more expansive
// capability.
package keychain

import (
	"math"

	"github.com/polykernel/polykernel/internal/flux"
	"github.com/polykernel/polykernel/internal/manifold"
)

const goldenAngle = 2.399963229728653 // 2*pi*(2-phi) — standard golden-angle constant.

// Centroid returns the deterministic expected 6D geodesic position for
// Hamiltonian-path step i ∈ 0..15.
func Centroid(i int) [6]float64 {
	var c [6]float64
	radius := 0.1 + 0.9*flux.Polyhedra[i].MinFlux
	theta := float64(i) * goldenAngle
	for d := 0; d < 6; d++ {
		phase := theta + float64(d)*math.Pi/3
		c[d] = radius * math.Sin(phase) / math.Sqrt(6)
	}
	return c
}

// Langues is the 6D decomposition of the HYPER block: intent = x1..x4,
// temporal = x5..x6.
type Langues struct {
	Intent [4]float64
	Temporal [2]float64
}

// ToVector returns the flattened 6D point (x1..x6).
func (l Langues) ToVector() [6]float64 {
	return [6]float64{l.Intent[0], l.Intent[1], l.Intent[2], l.Intent[3], l.Temporal[0], l.Temporal[1]}
}

// DecomposeHyper maps the HYPER block (indices 0..5 of the 21D state) into
// a Langues value.
func DecomposeHyper(hyper [6]float64) Langues {
	return Langues{
		Intent: [4]float64{hyper[0], hyper[1], hyper[2], hyper[3]},
		Temporal: [2]float64{hyper[4], hyper[5]},
	}
}

// MonitorParams holds the tunable intrusion-detection thresholds.
type MonitorParams struct {
	EpsSnap float64 // d > EpsSnap -> geodesic deviation flagged
	EpsCurv float64 // kappa > EpsCurv -> curvature flagged
	MaxIntrusions int
	RateThreshold float64
}

// DefaultMonitorParams returns conservative default thresholds.
func DefaultMonitorParams() MonitorParams {
	return MonitorParams{
		EpsSnap: 0.25,
		EpsCurv: 0.6,
		MaxIntrusions: 5,
		RateThreshold: 0.3,
	}
}

// RhythmWindow is a fixed-capacity ring buffer of the last 16 one-bit
// intrusion samples, with an explicit head/count instead of a growing slice.
type RhythmWindow struct {
	bits [16]bool
	head int
	n int
}

// Push appends one intrusion bit, evicting the oldest if at capacity.
func (w *RhythmWindow) Push(bit bool) {
	w.bits[w.head] = bit
	w.head = (w.head + 1) % len(w.bits)
	if w.n < len(w.bits) {
		w.n++
	}
}

// Count returns the number of true bits currently in the window.
func (w *RhythmWindow) Count() int {
	count := 0
	for i := 0; i < w.n; i++ {
		if w.bits[i] {
			count++
		}
	}
	return count
}

// MonitorResult is the output of one Monitor call at step tau.
type MonitorResult struct {
	Deviation float64
	Curvature float64
	IsIntrusion bool
}

// Monitor computes the geodesic deviation and curvature at normalised time
// tau ∈ [0,1] for the given Langues point, against the expected centroid
// for step floor(tau*16).
func Monitor(l Langues, tau float64, p MonitorParams) MonitorResult {
	step := int(tau * 16)
	if step > 15 {
		step = 15
	}
	if step < 0 {
		step = 0
	}
	centroid := Centroid(step)
	point := l.ToVector()

	d := manifold.HyperbolicDistance(point[:], centroid[:])
	kappa := localCurvature(step)

	return MonitorResult{
		Deviation: d,
		Curvature: kappa,
		IsIntrusion: d > p.EpsSnap || kappa > p.EpsCurv,
	}
}

// localCurvature approximates the curvature of the expected geodesic path
// at the given step by the second difference of consecutive centroids
// around it.
func localCurvature(step int) float64 {
	prev := step - 1
	next := step + 1
	if prev < 0 {
		prev = 0
	}
	if next > 15 {
		next = 15
	}
	a := Centroid(prev)
	b := Centroid(step)
	c := Centroid(next)

	var accel float64
	for d := 0; d < 6; d++ {
		second := a[d] - 2*b[d] + c[d]
		accel += second * second
	}
	return math.Sqrt(accel)
}
