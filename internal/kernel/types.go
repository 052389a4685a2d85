// Package kernel implements the 9-step process_action pipeline (component
// K): it owns per-agent state and composes the manifold, detection,
// immune, flux, keychain, lattice, torus, and audit packages into a single
// deterministic decision per call: construct once, run a tight per-event
// loop that only ever touches its own owned state.
package kernel

import (
	"time"

	"github.com/polykernel/polykernel/internal/flux"
	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/keychain"
	"github.com/polykernel/polykernel/internal/lattice"
)

// BrainDimensions is the fixed state-vector width.
const BrainDimensions = 21

// Decision is the kernel gate's own output vocabulary ,
// distinct from detection.Decision: the bank's ALLOW/QUARANTINE/ESCALATE/
// DENY is an internal recommendation the gate consumes, not the kernel's
// final authoritative call.
type Decision int

const (
	Allow Decision = iota
	Transform
	Block
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Transform:
		return "transform"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// Thresholds bundles the gate's configurable cutoffs.
type Thresholds struct {
	BlockThreshold float64
	TransformThreshold float64
	StutterMultiplier float64
	MaxStutter float64
	FluxContractionPerSnap float64
	SnapDivergence float64
}

// DefaultThresholds returns the pipeline's own block/transform defaults,
// kept separate from the evaluator front-end's 0.78/0.85/0.93 thresholds
// (see DESIGN.md).
func DefaultThresholds() Thresholds {
	return Thresholds{
		BlockThreshold: 0.8,
		TransformThreshold: 0.5,
		StutterMultiplier: 1.5,
		MaxStutter: 10.0,
		FluxContractionPerSnap: 0.15,
		SnapDivergence: 0.7,
	}
}

// Penalties is the per-agent penalty/breathing bookkeeping.
type Penalties struct {
	FailCount int
	TauDelay float64
	LastPenaltyAt time.Time
	SnapCount int
}

// AgentState is the canonical per-agent record K owns exclusively
//. No reference to it escapes the kernel.
type AgentState struct {
	AgentID string
	Step uint64

	Hyp [BrainDimensions]float64
	Torus Angles

	Flux float64
	FluxState flux.State

	Lattice LatticeSummary

	Capabilities []flux.Capability

	AuditAnchor string

	Penalties Penalties

	ImmuneRecord *immune.Record
	ImmuneState immune.State

	Tracker *keychain.Tracker
}

// Angles mirrors torus.Angles locally so kernel/types.go does not need to
// import internal/torus just for the field shape; pipeline.go converts.
type Angles struct {
	Theta, Phi, Rho, Sigma float64
}

// LatticeSummary is the last dual-lattice pass summary kept on agent state.
type LatticeSummary struct {
	Accepted bool
	Displacement float64
	Coherence float64
	Validated bool
}

func newLatticeSummary(r lattice.Result) LatticeSummary {
	return LatticeSummary{
		Accepted: r.Static.Accepted,
		Displacement: r.Dynamic.Displacement,
		Coherence: r.Coherence,
		Validated: r.Validated,
	}
}

// Metrics is the per-step diagnostic bundle surfaced to the caller.
type Metrics struct {
	HyperbolicDistance float64
	PhaseDeviation float64
	SpectralCoherence float64
	DriftMagnitude float64
	CombinedRisk float64
	EffectiveRisk float64
	RescaledEmbedding bool
	IdentityFallback bool
}

// Action is a single proposed action.
type Action struct {
	Type string
	StateVector [BrainDimensions]float64
}

// MemoryEvent is the optional torus-gate input.
type MemoryEvent struct {
	ContentHash string
	Domain int
	Sequence uint64
	Polarity float64
	Authority float64
}

// Result is the per-action output bundle.
type Result struct {
	Decision Decision
	Metrics Metrics
	Lattice LatticeSummary
	PenaltyApplied bool
	AuditHash string
	Snap bool
	State AgentState
}

// Fingerprint is the deterministic cross-instance convergence digest
//: it deliberately excludes
// wall-clock audit hashes.
type Fingerprint struct {
	Step uint64
	Flux float64
	FluxState flux.State
	ImmuneState immune.State
	FailCount int
	SnapCount int
	Coherence float64
	Validated bool
}

// Fingerprint computes the agent's convergence fingerprint.
func (s AgentState) Fingerprint() Fingerprint {
	return Fingerprint{
		Step: s.Step,
		Flux: s.Flux,
		FluxState: s.FluxState,
		ImmuneState: s.ImmuneState,
		FailCount: s.Penalties.FailCount,
		SnapCount: s.Penalties.SnapCount,
		Coherence: s.Lattice.Coherence,
		Validated: s.Lattice.Validated,
	}
}
