// Package manifold implements the Poincaré-ball embedding primitives shared
// by every other component of the kernel.
//
// Mathematical specification:
//
//	safe_poincare_embed(v) = tanh(‖v‖/2) · v/‖v‖        (exponential map from the origin)
//	hyperbolic_distance(u,v) = arcosh(1 + 2‖u-v‖² / ((1-‖u‖²)(1-‖v‖²)))
//	apply_golden_weighting(v)[i] = v[i] · φ^i
//
// Invariants:
//   - safe_poincare_embed always returns a vector with norm ≤ POINCARE_MAX_NORM.
//   - hyperbolic_distance never overflows: the denominator is floored at
//     BRAIN_EPSILON and the arcosh argument is floored at 1.
//   - All three functions are total: no input produces an error.
package manifold

import "math"

// PHI is the golden ratio (1+√5)/2.
const PHI = 1.618033988749895

// BRAIN_EPSILON bounds denominators away from zero throughout the kernel.
const BRAIN_EPSILON = 1e-10

// POINCARE_MAX_NORM is the hard ceiling on any embedded vector's norm.
const POINCARE_MAX_NORM = 1 - 1e-8

// epsilonBoundary is the margin used when rescaling an over-boundary vector.
const epsilonBoundary = 1e-8

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// SafePoincareEmbed maps v into the open unit ball via the exponential map
// from the origin. Returns the zero vector when ‖v‖ < BRAIN_EPSILON. The
// result always satisfies ‖·‖ ≤ POINCARE_MAX_NORM; values that would exceed
// it are rescaled down to that norm (a boundary-clamp event — this function
// does not report it; the kernel pipeline flags a clamp by checking the raw
// input norm against POINCARE_MAX_NORM).
func SafePoincareEmbed(v []float64) []float64 {
	r := Norm(v)
	out := make([]float64, len(v))
	if r < BRAIN_EPSILON {
		return out
	}
	scale := math.Tanh(r/2) / r
	for i, x := range v {
		out[i] = x * scale
	}
	if n := Norm(out); n > POINCARE_MAX_NORM {
		rescale := POINCARE_MAX_NORM / n
		for i := range out {
			out[i] *= rescale
		}
	}
	return out
}

// HyperbolicDistance computes the Poincaré-ball distance between u and v.
// Both vectors must have the same length. The denominator is floored at
// BRAIN_EPSILON to avoid overflow near the boundary; the arcosh argument is
// clamped to be ≥ 1 to stay in the domain of arcosh.
func HyperbolicDistance(u, v []float64) float64 {
	var diffSq, uNormSq, vNormSq float64
	for i := range u {
		d := u[i] - v[i]
		diffSq += d * d
		uNormSq += u[i] * u[i]
		vNormSq += v[i] * v[i]
	}
	denom := (1 - uNormSq) * (1 - vNormSq)
	if denom < BRAIN_EPSILON {
		denom = BRAIN_EPSILON
	}
	arg := 1 + 2*diffSq/denom
	if arg < 1 {
		arg = 1
	}
	return arcosh(arg)
}

func arcosh(x float64) float64 {
	return math.Log(x + math.Sqrt(x*x-1))
}

// ApplyGoldenWeighting multiplies component i of v by φ^i. It is not used
// for embedding, since the exponential weights would saturate the ball; the
// detection bank does not call it.
func ApplyGoldenWeighting(v []float64) []float64 {
	out := make([]float64, len(v))
	weight := 1.0
	for i, x := range v {
		out[i] = x * weight
		weight *= PHI
		_ = i
	}
	return out
}

// HarmonicScale is a duality-preserving rescaling that normalises a raw
// distance d against a reference scale R (the detection bank does not call
// it):
//
//	harmonic_scale(d, R) = (1 + d·R) / (R + d)
//
// This satisfies the duality invariant harmonic_scale(d,R) · harmonic_scale(d,1/R) = 1
// for all d ≥ 0, R > 0: substituting 1/R gives (R+d)/(1+d·R), the exact
// reciprocal of the original.
func HarmonicScale(d, r float64) float64 {
	if r <= 0 {
		r = BRAIN_EPSILON
	}
	return (1 + d*r) / (r + d)
}
