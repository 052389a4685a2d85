package kernel

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/polykernel/polykernel/internal/audit"
	"github.com/polykernel/polykernel/internal/detection"
	"github.com/polykernel/polykernel/internal/flux"
	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/keychain"
	"github.com/polykernel/polykernel/internal/kernelerr"
	"github.com/polykernel/polykernel/internal/lattice"
	"github.com/polykernel/polykernel/internal/manifold"
	"github.com/polykernel/polykernel/internal/operator"
	"github.com/polykernel/polykernel/internal/torus"
)

const trajectoryCap = 128

// Config bundles every sub-component's tunables into one pipeline config.
type Config struct {
	Thresholds Thresholds
	MonitorParams keychain.MonitorParams
	CostParams keychain.CostParams
	DetectionWeights detection.Weights
	DetectorThresholds detection.PerDetectorThresholds
	CombinedThresholds detection.Thresholds
	ImmuneConfig immune.Config
	FluxParams flux.Params
	AcceptanceRadius float64
	MaxPhasonAmplitude float64
	CoherenceThreshold float64
	PhasonCoupling float64
	AuditCapacity int
	HistoryCap int
}

// DefaultConfig wires every sub-component's own documented defaults.
func DefaultConfig() Config {
	return Config{
		Thresholds: DefaultThresholds(),
		MonitorParams: keychain.DefaultMonitorParams(),
		CostParams: keychain.DefaultCostParams(),
		DetectionWeights: detection.DefaultWeights(),
		DetectorThresholds: detection.DefaultPerDetectorThresholds(),
		CombinedThresholds: detection.DefaultThresholds(),
		ImmuneConfig: immune.DefaultConfig(),
		FluxParams: flux.DefaultParams(),
		AcceptanceRadius: lattice.AcceptanceRadius,
		MaxPhasonAmplitude: 0.5,
		CoherenceThreshold: 0.5,
		PhasonCoupling: 1.0,
		AuditCapacity: 10000,
		HistoryCap: 64,
	}
}

// agentEntry is the kernel-owned record for one agent: the canonical
// state plus auxiliary bookkeeping (trajectory, key schedule) kept separate
// from the canonical state proper. Each entry has its
// own mutex so that cross-agent calls can run in parallel while still
// guaranteeing that process_action for a given agent runs to completion
// before the next call for that same agent.
type agentEntry struct {
	mu sync.Mutex
	state AgentState
	trajectory []detection.Point
	tongue int
}

// StepRecord is one entry in the ordered, cross-agent broadcast log.
type StepRecord struct {
	AgentID string
	Step uint64
	Fingerprint Fingerprint
}

// Pipeline owns every agent's state, the shared audit log, and the shared
// ordered step log -- the only two structures that require a single
// exclusive writer across all agents.
type Pipeline struct {
	cfg Config

	agentsMu sync.Mutex
	agents map[string]*agentEntry

	auditLog *audit.Log

	logMu sync.Mutex
	stepLog []StepRecord

	// pins holds operator overrides: an agent pinned here has its immune
	// state held fixed across process_action calls until unpinned.
	pins *operator.PinOverlay
}

// NewPipeline constructs a kernel pipeline with the given configuration.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		agents: make(map[string]*agentEntry),
		auditLog: audit.New(cfg.AuditCapacity),
		pins: operator.NewPinOverlay(),
	}
}

func tongueFor(agentID string) int {
	var sum int
	for _, c := range agentID {
		sum += int(c)
	}
	if sum < 0 {
		sum = -sum
	}
	return sum % 6
}

func (p *Pipeline) entry(agentID string, masterKey []byte) *agentEntry {
	p.agentsMu.Lock()
	defer p.agentsMu.Unlock()

	e, ok := p.agents[agentID]
	if ok {
		return e
	}

	k0, err := keychain.DeriveSeedKey(masterKey, agentID, 0)
	if err != nil {
		// ProcessAction has already rejected a master key that is not 32
		// bytes; should HKDF still fail, the agent gets a zero schedule
		// rather than a panic.
		k0 = make([]byte, 32)
	}

	e = &agentEntry{
		state: AgentState{
			AgentID: agentID,
			ImmuneRecord: immune.NewRecord(agentID, p.cfg.HistoryCap),
			ImmuneState: immune.Healthy,
			Tracker: keychain.NewTracker(k0),
			Penalties: Penalties{TauDelay: 1.0},
		},
		tongue: tongueFor(agentID),
	}
	p.agents[agentID] = e
	return e
}

// validateAction checks the input-shape precondition.
func validateAction(agentID string, act Action) error {
	for i, x := range act.StateVector {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return kernelerr.InputShapeError(agentID, "process_action",
				fmt.Errorf("state_vector[%d] is NaN/Inf", i))
		}
	}
	return nil
}

// ProcessAction runs the full 9-step pipeline for one agent.
// masterKey must be 32 bytes; it seeds the agent's key schedule on first
// use and is otherwise ignored.
func (p *Pipeline) ProcessAction(agentID string, act Action, masterKey []byte, ev *MemoryEvent) (Result, error) {
	if err := validateAction(agentID, act); err != nil {
		return Result{}, err
	}
	if len(masterKey) != 32 {
		return Result{}, kernelerr.InputShapeError(agentID, "process_action",
			fmt.Errorf("master key is %d bytes, want 32", len(masterKey)))
	}

	e := p.entry(agentID, masterKey)
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.state

	// Step 1: propose. act.StateVector is the raw 21D input.
	raw := act.StateVector
	rawNorm := manifold.Norm(raw[:])

	// Step 2: score.
	embedded := manifold.SafePoincareEmbed(raw[:])
	var embeddedArr [BrainDimensions]float64
	copy(embeddedArr[:], embedded)

	rescaled := rawNorm >= manifold.POINCARE_MAX_NORM

	zero := make([]float64, BrainDimensions)
	hypDist := manifold.HyperbolicDistance(embedded, zero)

	clampedNorm := rawNorm
	if clampedNorm > 1 {
		clampedNorm = 1
	}
	phaseDeviation := clampedNorm
	spectralCoherence := 1 - clampedNorm
	driftMagnitude := rawNorm

	combinedRisk := math.Min(1, 0.3*hypDist/20+0.3*phaseDeviation+0.2*(1-spectralCoherence)+0.2*driftMagnitude)

	var hyper [6]float64
	copy(hyper[:], raw[0:6])
	langues := keychain.DecomposeHyper(hyper)

	// tau cycles once per 16-step Hamiltonian path, normalised into [0,1]
	// by the 16-step cycle so it lines up with the monitor's tau-at-step
	// convention.
	tau := float64(st.Step%16) / 16.0
	monitorResult := st.Tracker.Step(langues, tau, p.cfg.MonitorParams, p.cfg.CostParams)

	// Step 3: transform.
	var anomalyDims []int
	for i, x := range raw {
		if math.Abs(x) > 0.7 {
			anomalyDims = append(anomalyDims, i)
		}
	}
	shift := lattice.ThreatPhason(anomalyDims, combinedRisk, p.cfg.MaxPhasonAmplitude, p.cfg.PhasonCoupling, int(st.Step))
	latticeResult := lattice.Run(hyper, shift, p.cfg.AcceptanceRadius, p.cfg.MaxPhasonAmplitude, p.cfg.CoherenceThreshold)

	// Step 4: decide (the gate). Immune/flux state referenced here are the
	// values left over from the previous call's step 7, matching the
	// per-agent sequential-consistency requirement.
	decision := gate(gateInput{
		CombinedRisk: combinedRisk,
		Escalation: monitorResult.Escalated,
		LanguesDecision: monitorResult.LanguesDecision,
		IntrusionCount: st.Tracker.IntrusionCount,
		ImmuneState: st.ImmuneState,
		FluxState: st.FluxState,
		LatticeCoherence: latticeResult.Coherence,
		LatticeValidated: latticeResult.Validated,
		TauDelay: st.Penalties.TauDelay,
	}, p.cfg.Thresholds)

	// Step 5: execute -- left to the caller; nothing to do here.

	// Step 6: memory write.
	snap := false
	if ev != nil && decision != Block {
		current := torus.Angles{Theta: st.Torus.Theta, Phi: st.Torus.Phi, Rho: st.Torus.Rho, Sigma: st.Torus.Sigma}
		gateResult := torus.Evaluate(current, torus.MemoryEvent{
			Domain: ev.Domain,
			Sequence: ev.Sequence,
			Polarity: ev.Polarity,
			Authority: ev.Authority,
		}, p.cfg.Thresholds.SnapDivergence)
		snap = gateResult.Snap
		if !snap {
			st.Torus = Angles{Theta: gateResult.Candidate.Theta, Phi: gateResult.Candidate.Phi, Rho: gateResult.Candidate.Rho, Sigma: gateResult.Candidate.Sigma}
		}
	}

	// Step 7: penalty / breathing, detection+immune update, flux evolution.
	switch {
	case snap:
		st.Penalties.SnapCount++
		st.Penalties.TauDelay = math.Min(st.Penalties.TauDelay*p.cfg.Thresholds.StutterMultiplier, p.cfg.Thresholds.MaxStutter)
	case decision == Block:
		st.Penalties.FailCount++
		st.Penalties.TauDelay = math.Min(st.Penalties.TauDelay*1.2, p.cfg.Thresholds.MaxStutter)
		st.Penalties.LastPenaltyAt = time.Now()
	default:
		st.Penalties.TauDelay = math.Max(1.0, st.Penalties.TauDelay*0.85)
	}

	point := detection.Point{
		Step: st.Step,
		State: raw,
		Embedded: embeddedArr,
		Distance: hypDist,
		Curvature: 0,
	}
	e.trajectory = append(e.trajectory, point)
	if len(e.trajectory) > trajectoryCap {
		e.trajectory = e.trajectory[len(e.trajectory)-trajectoryCap:]
	}
	assessment := detection.Run(e.trajectory, e.tongue, p.cfg.DetectionWeights, p.cfg.DetectorThresholds, p.cfg.CombinedThresholds)

	prevImmuneState := st.ImmuneState
	assessResult := st.ImmuneRecord.Assess(immune.AssessInput{
		AnyFlagged: assessment.AnyFlagged,
		FlagCount: assessment.FlagCount,
		CombinedScore: assessment.CombinedScore,
	}, p.cfg.ImmuneConfig)
	if pinned, ok := p.pins.Get(agentID); ok {
		st.ImmuneState = pinned
	} else {
		st.ImmuneState = assessResult.State
	}

	trust := monitorResult.InducedTrust
	nu := flux.Evolve(st.Flux, trust, st.ImmuneState, int(st.Step), p.cfg.FluxParams)
	if snap {
		nu = flux.Contract(nu, p.cfg.Thresholds.FluxContractionPerSnap)
	}
	st.Flux = nu
	st.FluxState = flux.DeriveState(nu)
	st.Capabilities = flux.CapabilitySet(st.FluxState)
	st.Lattice = newLatticeSummary(latticeResult)

	// Step 8: audit.
	ev8, err := p.auditLog.Append(audit.Event{
		Timestamp: time.Now(),
		Layer: "kernel",
		Kind: decision.String(),
		StateDelta: fmt.Sprintf("%s->%s", prevImmuneState.String(), st.ImmuneState.String()),
		BoundaryDistance: hypDist,
		Metadata: map[string]interface{}{
			"agent_id": agentID,
			"step": st.Step,
			"snap": snap,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("kernel: audit append: %w", err)
	}
	st.AuditAnchor = ev8.SelfHash

	result := Result{
		Decision: decision,
		Metrics: Metrics{
			HyperbolicDistance: hypDist,
			PhaseDeviation: phaseDeviation,
			SpectralCoherence: spectralCoherence,
			DriftMagnitude: driftMagnitude,
			CombinedRisk: combinedRisk,
			RescaledEmbedding: rescaled,
			IdentityFallback: latticeResult.Dynamic.UsedIdentityFallback,
		},
		Lattice: st.Lattice,
		PenaltyApplied: decision == Block || snap,
		AuditHash: ev8.SelfHash,
		Snap: snap,
	}

	// Step 9: broadcast.
	st.Hyp = embeddedArr
	st.Step++
	result.State = *st

	p.logMu.Lock()
	p.stepLog = append(p.stepLog, StepRecord{AgentID: agentID, Step: st.Step - 1, Fingerprint: st.Fingerprint()})
	p.logMu.Unlock()

	return result, nil
}

// AuditLog exposes the shared audit log for external verification/export.
func (p *Pipeline) AuditLog() *audit.Log {
	return p.auditLog
}

// StepLog returns a copy of the ordered, cross-agent step log.
func (p *Pipeline) StepLog() []StepRecord {
	p.logMu.Lock()
	defer p.logMu.Unlock()
	out := make([]StepRecord, len(p.stepLog))
	copy(out, p.stepLog)
	return out
}

// RecordOperatorEvent appends an operator command (reset/pin/unpin) to the
// shared hash chain, giving every override the same tamper-evident trail as
// a pipeline-driven decision.
func (p *Pipeline) RecordOperatorEvent(cmd, agentID, detail string) {
	_, _ = p.auditLog.Append(audit.Event{
		Timestamp: time.Now().UTC(),
		Layer: "operator",
		Kind: cmd,
		StateDelta: detail,
		Metadata: map[string]interface{}{"agent_id": agentID},
	})
}
