// curvature.go — detector 2: curvature accumulation.
//
// Formula: for every interior point, compute the Menger
// curvature of the triple (p_{i-1}, p_i, p_{i+1}) projected to the first
// three dimensions:
//
//	κ = 4·Area / (‖AB‖·‖BC‖·‖AC‖)
//
// where Area is the area of the triangle ABC (via the cross-product
// magnitude in 3D) and A, B, C are the three projected points. Score is the
// windowed mean over the trajectory (the mean is used rather than the max,
// per the note that curvature baselines can saturate near 1.0 for
// certain embeddings — averaging keeps a single spike from dominating while
// still accumulating sustained curvature).

package detection

import "math"

// CurvatureAccumulation computes detector 2 over a trajectory.
func CurvatureAccumulation(trajectory []Point, threshold float64) Result {
	if len(trajectory) < 3 {
		return Result{Score: 0, Flagged: false, Evidence: "trajectory too short"}
	}

	var sum float64
	count := 0
	for i := 1; i < len(trajectory)-1; i++ {
		kappa := mengerCurvature(
			trajectory[i-1].Embedded[:3],
			trajectory[i].Embedded[:3],
			trajectory[i+1].Embedded[:3],
		)
		sum += kappa
		count++
	}
	if count == 0 {
		return Result{Score: 0, Flagged: false, Evidence: "no interior points"}
	}
	mean := sum / float64(count)
	score := math.Min(mean, 1.0)

	return Result{
		Score: score,
		Flagged: score > threshold,
		Evidence: "mean_curvature=" + formatFloat(mean),
	}
}

// mengerCurvature computes κ = 4·Area / (‖AB‖·‖BC‖·‖AC‖) for the triangle
// A, B, C in 3D. Returns 0 if any side length is below BRAIN_EPSILON
// (degenerate / collinear-at-a-point triple).
func mengerCurvature(a, b, c []float64) float64 {
	ab := sub(b, a)
	bc := sub(c, b)
	ac := sub(c, a)

	abLen := norm3(ab)
	bcLen := norm3(bc)
	acLen := norm3(ac)

	const eps = 1e-10
	if abLen < eps || bcLen < eps || acLen < eps {
		return 0
	}

	cross := cross3(ab, ac)
	area := 0.5 * norm3(cross)

	return 4 * area / (abLen * bcLen * acLen)
}

func sub(x, y []float64) []float64 {
	return []float64{x[0] - y[0], x[1] - y[1], x[2] - y[2]}
}

func norm3(v []float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func cross3(u, v []float64) []float64 {
	return []float64{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
}
