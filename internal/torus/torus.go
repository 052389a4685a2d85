// Package torus implements the toroidal memory write-gate (component G):
// four-angle candidate computation and divergence-based snap detection
//.
package torus

import "math"

// Angles is the four-angle torus state (θ, φ, ρ, σ) ∈ [0, 2π)⁴ for domain,
// sequence, polarity, and authority respectively.
type Angles struct {
	Theta float64
	Phi float64
	Rho float64
	Sigma float64
}

// MemoryEvent is a proposed write to the torus memory.
type MemoryEvent struct {
	Domain int // 0..20
	Sequence uint64
	Polarity float64 // [-1, 1]
	Authority float64 // [0, 1]
}

const twoPi = 2 * math.Pi

// Candidate computes the candidate torus angles for a memory event against
// the current state.
func Candidate(current Angles, ev MemoryEvent) Angles {
	theta := (float64(ev.Domain) / 21) * twoPi
	phi := math.Mod(current.Phi+float64(ev.Sequence)*twoPi/1000, twoPi)
	if phi < 0 {
		phi += twoPi
	}
	rho := ((ev.Polarity + 1) / 2) * math.Pi
	sigma := ev.Authority * twoPi
	return Angles{Theta: theta, Phi: phi, Rho: rho, Sigma: sigma}
}

// shortestArc returns the shortest-arc distance between two angles in
// [0, 2π), result in [0, π].
func shortestArc(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), twoPi)
	if d > math.Pi {
		d = twoPi - d
	}
	return d
}

// Divergence computes the weighted shortest-arc divergence between the
// current and candidate torus states, normalised to [0,1].
func Divergence(current, candidate Angles) float64 {
	dTheta := shortestArc(current.Theta, candidate.Theta)
	dRho := shortestArc(current.Rho, candidate.Rho)
	dSigma := shortestArc(current.Sigma, candidate.Sigma)
	dPhi := shortestArc(current.Phi, candidate.Phi)

	return (0.35*dTheta + 0.30*dRho + 0.20*dSigma + 0.15*dPhi) / math.Pi
}

// GateResult is the outcome of one torus-gate evaluation.
type GateResult struct {
	Candidate Angles
	Divergence float64
	Snap bool
}

// Evaluate computes the candidate state and divergence, and decides whether
// the write snaps (is rejected). On snap, the caller must not advance the
// torus state; on commit, the caller replaces it with Candidate.
func Evaluate(current Angles, ev MemoryEvent, snapThreshold float64) GateResult {
	cand := Candidate(current, ev)
	div := Divergence(current, cand)
	return GateResult{
		Candidate: cand,
		Divergence: div,
		Snap: div > snapThreshold,
	}
}

// DefaultSnapThreshold is the fixed default divergence boundary.
const DefaultSnapThreshold = 0.7
