// Package lattice implements the dual-lattice projector (component F): a
// fixed 6D→3D cut-and-project pair (parallel/perpendicular), phason shifts,
// and acceptance/coherence scoring.
//
// The parallel and perpendicular projection matrices are fixed constants of
// the system; their coefficients are exact, not tunable. This
// implementation builds them from 5-fold-symmetric trigonometry of angles
// 2πk/5 for k=0..5 (the period-5 cycle repeats once, giving six columns for
// the six HYPER dimensions) with a golden-ratio elevation term, the
// standard construction used to project a 6D lattice with icosahedral
// symmetry onto a 3D physical subspace and its 3D orthogonal complement —
// the perpendicular matrix uses the doubled angle 2·(2πk/5), the conjugate
// relation that carries the golden-ratio irrationality into the
// perpendicular subspace.
package lattice

import "math"

const phi = 1.618033988749895

// Matrix63 is a fixed 6×3 linear map, stored so that row i, column j is
// the contribution of HYPER dimension i to physical axis j.
type Matrix63 [6][3]float64

var parallelNorm = 1 / math.Sqrt(3)

// ParallelMatrix and PerpendicularMatrix are the fixed projection matrices.
var (
	ParallelMatrix Matrix63
	PerpendicularMatrix Matrix63
)

func init() {
	for k := 0; k < 6; k++ {
		theta := 2 * math.Pi * float64(k) / 5
		ParallelMatrix[k] = [3]float64{
			parallelNorm * math.Cos(theta),
			parallelNorm * math.Sin(theta),
			parallelNorm / phi,
		}
		theta2 := 2 * theta
		PerpendicularMatrix[k] = [3]float64{
			parallelNorm * math.Cos(theta2),
			parallelNorm * math.Sin(theta2),
			-parallelNorm * phi,
		}
	}
}

// Project applies a 6×3 matrix to a 6D point, producing a 3D point.
func (m Matrix63) Project(x [6]float64) [3]float64 {
	var out [3]float64
	for j := 0; j < 3; j++ {
		var sum float64
		for i := 0; i < 6; i++ {
			sum += m[i][j] * x[i]
		}
		out[j] = sum
	}
	return out
}

// LiftTranspose applies the transpose of a 6×3 matrix to a 3D point,
// producing a 6D point. Used for the phason-shift lift (no inversion
// needed — the perpendicular shift is lifted via E_perp^T directly).
func (m Matrix63) LiftTranspose(y [3]float64) [6]float64 {
	var out [6]float64
	for i := 0; i < 6; i++ {
		var sum float64
		for j := 0; j < 3; j++ {
			sum += m[i][j] * y[j]
		}
		out[i] = sum
	}
	return out
}

// Gram computes M Mᵀ as a 3×3 matrix, where M is the 3×6 transpose of m
// (i.e. Gram[a][b] = Σ_i m[i][a]·m[i][b]).
func (m Matrix63) Gram() [3][3]float64 {
	var g [3][3]float64
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum float64
			for i := 0; i < 6; i++ {
				sum += m[i][a] * m[i][b]
			}
			g[a][b] = sum
		}
	}
	return g
}
