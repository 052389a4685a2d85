package kernel

import (
	"github.com/polykernel/polykernel/internal/flux"
	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/keychain"
)

// gateInput is everything the decide step needs. It is a
// plain value (no back-pointers into the pipeline or agent record) so the
// gate itself stays a pure function, independently testable.
type gateInput struct {
	CombinedRisk float64
	Escalation bool
	LanguesDecision keychain.LanguesDecision
	IntrusionCount int
	ImmuneState immune.State
	FluxState flux.State
	LatticeCoherence float64
	LatticeValidated bool
	TauDelay float64
}

// gate decides: hard-block dominance first, then a
// weighted effective-risk threshold map. The gate never returns Allow when
// any hard-block condition holds.
func gate(in gateInput, th Thresholds) Decision {
	hardBlock := (in.Escalation && in.CombinedRisk > 0.3) ||
		(in.LanguesDecision == keychain.LanguesDeny && in.CombinedRisk > 0.4) ||
		(in.IntrusionCount >= 5 && in.CombinedRisk > 0.15) ||
		(in.ImmuneState == immune.Expelled) ||
		(in.FluxState == flux.Collapsed && in.CombinedRisk > 0.3) ||
		(!in.LatticeValidated && in.CombinedRisk > 0.6)

	if hardBlock {
		return Block
	}

	tauPenalty := 0.0
	if in.TauDelay > 2 {
		tauPenalty = 1.0
	}
	quarantinePenalty := 0.0
	if in.ImmuneState == immune.Quarantined {
		quarantinePenalty = 1.0
	}

	effectiveRisk := 0.4*in.CombinedRisk +
		0.2*(1-in.LatticeCoherence) +
		0.2*tauPenalty +
		0.2*quarantinePenalty

	switch {
	case effectiveRisk >= th.BlockThreshold:
		return Block
	case effectiveRisk >= th.TransformThreshold:
		return Transform
	default:
		return Allow
	}
}
