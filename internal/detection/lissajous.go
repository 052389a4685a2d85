// lissajous.go — detector 3: threat-plane Lissajous.
//
// Formula: project the (behaviour, intent) pair over time
// to 2D and compute a self-intersection / knot density score. "Behaviour"
// is taken as the HAM block mean per step, "intent" as the sum x1 + x2 of
// the first two HYPER components per step. A high self-intersection density
// indicates a malicious, knotted trajectory rather than a smooth one.

package detection

import "math"

const hamBlockStart = 12
const hamBlockEnd = 16 // exclusive

// ThreatPlaneLissajous computes detector 3 over a trajectory.
func ThreatPlaneLissajous(trajectory []Point, threshold float64) Result {
	if len(trajectory) < 4 {
		return Result{Score: 0, Flagged: false, Evidence: "trajectory too short"}
	}

	xs := make([]float64, len(trajectory))
	ys := make([]float64, len(trajectory))
	for i, p := range trajectory {
		var hamSum float64
		for j := hamBlockStart; j < hamBlockEnd; j++ {
			hamSum += p.State[j]
		}
		xs[i] = hamSum / float64(hamBlockEnd-hamBlockStart) // behaviour
		ys[i] = p.State[0] + p.State[1] // intent
	}

	intersections := 0
	segments := len(xs) - 1
	for i := 0; i < segments; i++ {
		for j := i + 2; j < segments; j++ {
			if segmentsIntersect(xs[i], ys[i], xs[i+1], ys[i+1], xs[j], ys[j], xs[j+1], ys[j+1]) {
				intersections++
			}
		}
	}

	maxPossible := segments * (segments - 1) / 2
	var density float64
	if maxPossible > 0 {
		density = float64(intersections) / float64(maxPossible)
	}
	score := math.Min(density*2.0, 1.0) // knots are rarer than non-knots; amplify.

	return Result{
		Score: score,
		Flagged: score > threshold,
		Evidence: "intersections=" + formatInt(intersections),
	}
}

// segmentsIntersect reports whether segment (p1,p2) properly intersects
// segment (p3,p4), using the standard orientation test.
func segmentsIntersect(x1, y1, x2, y2, x3, y3, x4, y4 float64) bool {
	d1 := orientation(x3, y3, x4, y4, x1, y1)
	d2 := orientation(x3, y3, x4, y4, x2, y2)
	d3 := orientation(x1, y1, x2, y2, x3, y3)
	d4 := orientation(x1, y1, x2, y2, x4, y4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func orientation(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}
