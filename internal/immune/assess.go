// assess.go — the per-action immune update: the suspicion update rule and
// the state transition table.

package immune

import "math"

// AssessInput is what the kernel passes in from the detection bank's
// combined assessment for this step.
type AssessInput struct {
	AnyFlagged bool
	FlagCount int
	CombinedScore float64
}

// AssessResult is what the kernel receives back: the new state, the risk
// modifier to apply to flux/gate computations, and the repulsion force.
type AssessResult struct {
	State State
	Suspicion float64
	RiskModifier float64
	RepulsionForce float64
	ConsensusHeld bool
	JustQuarantined bool
	JustExpelled bool
}

// baseRepulsion is the base scale for the repulsion force formula
// force = base · φ^suspicion.
const baseRepulsion = 1.0

// phi is the golden ratio, duplicated locally (rather than importing
// internal/manifold) to keep the immune model free of a dependency on the
// geometry package — the two literals are kept equal by hand.
const phi = 1.618033988749895

// maxRepulsionForce caps the exponential blow-up of the repulsion formula.
const maxRepulsionForce = 1e6

// Assess runs one immune-model update for r given the detection bank's
// output for this step. Besides Assess, suspicion/state/accusers change only
// through Accuse, ReleaseFromQuarantine and Reset.
func (r *Record) Assess(in AssessInput, cfg Config) AssessResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasQuarantined := r.current == Quarantined
	wasExpelled := r.current == Expelled

	if !wasExpelled {
		if in.AnyFlagged {
			increment := float64(in.FlagCount) * cfg.PerFlagCost * (0.5 + 0.5*in.CombinedScore)
			if wasQuarantined {
				increment *= cfg.QuarantineAmplification - 1
			}
			r.suspicion += increment
		} else {
			r.suspicion = math.Max(0, r.suspicion-cfg.Decay)
		}
	}
	r.pushHistory(r.suspicion)

	consensusHeld := len(r.accusers) >= cfg.ConsensusMin

	var next State
	switch {
	case wasExpelled:
		next = Expelled
	case r.suspicion >= cfg.Thresholds.Expulsion || r.quarantineCount >= cfg.MaxQuarantineCount:
		next = Expelled
	case r.suspicion >= cfg.Thresholds.Quarantine && consensusHeld:
		next = Quarantined
	case r.suspicion >= cfg.Thresholds.Quarantine && !consensusHeld:
		next = Inflamed
	case r.suspicion >= cfg.Thresholds.Inflamed:
		next = Inflamed
	case r.suspicion >= cfg.Thresholds.Monitoring:
		next = Monitoring
	default:
		next = Healthy
	}

	justQuarantined := next == Quarantined && r.current != Quarantined
	justExpelled := next == Expelled && r.current != Expelled
	if justQuarantined {
		r.quarantineCount++
	}
	r.current = next

	force := baseRepulsion * math.Pow(phi, r.suspicion)
	if next == Quarantined {
		force *= cfg.QuarantineAmplification
	}
	if force > maxRepulsionForce {
		force = maxRepulsionForce
	}

	return AssessResult{
		State: next,
		Suspicion: r.suspicion,
		RiskModifier: RiskModifier(next, cfg.QuarantineAmplification),
		RepulsionForce: force,
		ConsensusHeld: consensusHeld,
		JustQuarantined: justQuarantined,
		JustExpelled: justExpelled,
	}
}

// ReleaseFromQuarantine halves suspicion and clears accusers.
// It does not change the current state directly; the next Assess call will
// recompute state from the (now-halved) suspicion value. Has no effect if
// the record is Expelled (terminal).
func (r *Record) ReleaseFromQuarantine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == Expelled {
		return
	}
	r.suspicion /= 2
	r.accusers = make(map[string]struct{})
}
