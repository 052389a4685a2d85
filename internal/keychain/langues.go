// langues.go — the Langues cost function, decision classification,
// escalation rule, and flux coupling.
//
// Langues cost:
//
//	L(x,tau) = Σ_{i=1}^{6} w_i · exp(beta_i · (x_i + sin(omega_i·tau + phi_i)))
//	w_i = phi^(i-1)
//	phi_i = 2*pi*(i-1)/6
//	beta_i = beta_base · phi^((i-1)/2)
//	omega_i = i
package keychain

import "math"

const phi = 1.618033988749895

// CostParams holds the Langues-cost classification thresholds.
type CostParams struct {
	BetaBase float64
	Low float64
	High float64
}

// DefaultCostParams returns a conservative default parameter set.
func DefaultCostParams() CostParams {
	return CostParams{
		BetaBase: 0.5,
		Low: 4.0,
		High: 12.0,
	}
}

// LanguesDecision is the cost-based classification.
type LanguesDecision int

const (
	LanguesAllow LanguesDecision = iota
	LanguesQuarantine
	LanguesDeny
)

func (d LanguesDecision) String() string {
	switch d {
	case LanguesAllow:
		return "ALLOW"
	case LanguesQuarantine:
		return "QUARANTINE"
	case LanguesDeny:
		return "DENY"
	default:
		return "UNKNOWN"
	}
}

// LanguesCost computes L(x,tau) for the 6D Langues vector x at normalised
// time tau, using fixed evaluation order (i = 1..6, left to right) to keep
// the computation bit-reproducible across implementations, per the
// floating-point-determinism note.
func LanguesCost(x [6]float64, tau float64, p CostParams) float64 {
	var total float64
	for idx := 0; idx < 6; idx++ {
		i := float64(idx + 1)
		w := math.Pow(phi, i-1)
		phaseOffset := 2 * math.Pi * (i - 1) / 6
		beta := p.BetaBase * math.Pow(phi, (i-1)/2)
		omega := i
		total += w * math.Exp(beta*(x[idx]+math.Sin(omega*tau+phaseOffset)))
	}
	return total
}

// ClassifyCost maps a Langues cost to a decision.
func ClassifyCost(cost float64, p CostParams) LanguesDecision {
	switch {
	case cost < p.Low:
		return LanguesAllow
	case cost < p.High:
		return LanguesQuarantine
	default:
		return LanguesDeny
	}
}

// Escalation computes phdm_escalation.
func Escalation(intrusionCount, totalSteps int, maxIntrusions int, rateThreshold float64) bool {
	if intrusionCount >= maxIntrusions {
		return true
	}
	if totalSteps >= 5 {
		rate := float64(intrusionCount) / float64(totalSteps)
		if rate > rateThreshold {
			return true
		}
	}
	return false
}

// FluxCoupling maps a geodesic deviation (and escalation state) to an
// induced trust value for external callers, per the "Flux
// coupling". On-geodesic yields trust in [0.8,1.0]; off-geodesic yields
// trust in [0,0.3] proportional to min(d/(10*epsSnap), 1); escalation
// forces trust to 0.
func FluxCoupling(deviation float64, escalated bool, epsSnap float64) float64 {
	if escalated {
		return 0
	}
	if deviation <= epsSnap {
		// On-geodesic: closer to zero deviation -> closer to 1.0.
		if epsSnap <= 0 {
			return 0.8
		}
		frac := 1 - deviation/epsSnap
		return 0.8 + 0.2*frac
	}
	ratio := deviation / (10 * epsSnap)
	if ratio > 1 {
		ratio = 1
	}
	return 0.3 * ratio
}
