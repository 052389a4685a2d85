// Package flux implements the per-agent flux controller (component D): a
// continuous value ν ∈ [0,1] evolved by an explicit Euler step, its derived
// flux_state tier, the fixed capability table, and the accessible-polyhedra
// computation shared with the key chain (component E).
//
// Formula:
//
//	dν = κ·(trust - ν) + σ·sin(Ω·t) - immune_penalty[state] + trust_boost·𝟙[trust > 0.8]
//	ν ← clamp(ν + dν·dt, 0, 1)
//
// Flux determinism: Evolve must be a pure function of its
// inputs — no wall-clock reads, no hidden state beyond what is passed in.
package flux

import (
	"math"

	"github.com/polykernel/polykernel/internal/immune"
)

// State is the derived flux tier.
type State uint8

const (
	Collapsed State = iota
	Demi
	Quasi
	Polly
)

func (s State) String() string {
	switch s {
	case Polly:
		return "POLLY"
	case Quasi:
		return "QUASI"
	case Demi:
		return "DEMI"
	case Collapsed:
		return "COLLAPSED"
	default:
		return "UNKNOWN"
	}
}

// Fixed flux tier boundaries.
const (
	PollyMin = 0.8
	QuasiMin = 0.5
	DemiMin = 0.1
)

// DeriveState buckets a flux value into its tier.
func DeriveState(nu float64) State {
	switch {
	case nu >= PollyMin:
		return Polly
	case nu >= QuasiMin:
		return Quasi
	case nu >= DemiMin:
		return Demi
	default:
		return Collapsed
	}
}

// Capability is one of the fixed capability strings.
type Capability string

const (
	CapRead Capability = "read"
	CapWrite Capability = "write"
	CapExecute Capability = "execute"
	CapDeploy Capability = "deploy"
	CapAdmin Capability = "admin"
	CapCreate Capability = "create"
)

// CapabilitySet returns the fixed capability tier table lookup for state.
func CapabilitySet(s State) []Capability {
	switch s {
	case Polly:
		return []Capability{CapRead, CapWrite, CapExecute, CapDeploy, CapAdmin, CapCreate}
	case Quasi:
		return []Capability{CapRead, CapWrite, CapExecute, CapCreate}
	case Demi:
		return []Capability{CapRead, CapWrite}
	case Collapsed:
		return []Capability{CapRead}
	default:
		return []Capability{CapRead}
	}
}

// ImmunePenalty is the fixed mapping from immune state to the flux penalty
// term.
func ImmunePenalty(s immune.State) float64 {
	switch s {
	case immune.Healthy:
		return 0
	case immune.Monitoring:
		return 0.05
	case immune.Inflamed:
		return 0.15
	case immune.Quarantined:
		return 0.40
	case immune.Expelled:
		return 1.0
	default:
		return 0
	}
}

// Params holds the tunable Euler-step coefficients.
type Params struct {
	Kappa float64 // κ: mean-reversion rate
	Sigma float64 // σ: oscillation amplitude
	Omega float64 // Ω: oscillation frequency
	TrustBoost float64 // additive boost when trust > 0.8
	Dt float64 // integration step size
}

// DefaultParams returns a conservative default parameter set.
func DefaultParams() Params {
	return Params{
		Kappa: 0.2,
		Sigma: 0.05,
		Omega: 0.3,
		TrustBoost: 0.05,
		Dt: 1.0,
	}
}

// Evolve performs one explicit Euler step and returns the new, clamped ν.
// t is the agent's local step counter (not wall-clock time) — this keeps
// Evolve a pure function of (nu, trust, immuneState, t, p).
func Evolve(nu, trust float64, immuneState immune.State, t int, p Params) float64 {
	dnu := p.Kappa*(trust-nu) + p.Sigma*math.Sin(p.Omega*float64(t)) - ImmunePenalty(immuneState)
	if trust > 0.8 {
		dnu += p.TrustBoost
	}
	next := nu + dnu*p.Dt
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	return next
}

// Contract applies the post-snap flux contraction. Must be called after
// Evolve: the caller contracts ν only after the evolution has run, so the
// contraction persists.
func Contract(nu, step float64) float64 {
	next := nu - step
	if next < 0 {
		return 0
	}
	return next
}
