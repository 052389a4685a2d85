package kernel

import (
	"math"
	"testing"
)

var testMasterKey = make([]byte, 32)

func smoothAction(step int) Action {
	var sv [BrainDimensions]float64
	// state[0..5] vary smoothly on sine paths of amplitude 0.2 around 0.95;
	// the remaining blocks stay near zero.
	for i := 0; i < 6; i++ {
		sv[i] = 0.95 + 0.2*math.Sin(float64(step)+float64(i))
	}
	return Action{Type: "navigate", StateVector: sv}
}

func TestProcessAction_SmoothHonestAgentIsAllowed(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	for i := 0; i < 100; i++ {
		res, err := p.ProcessAction("agent-honest", smoothAction(i), testMasterKey, nil)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if res.Decision != Allow {
			t.Errorf("step %d: expected ALLOW, got %v (risk=%v)", i, res.Decision, res.Metrics.CombinedRisk)
		}
	}
}

func TestProcessAction_BoundaryPushingAgentAtLeastTransforms(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	var sv [BrainDimensions]float64
	// ||state|| = 1.5 spread evenly across all 21 dimensions.
	per := 1.5 / math.Sqrt(21)
	for i := range sv {
		sv[i] = per
	}

	res, err := p.ProcessAction("agent-boundary", Action{Type: "click", StateVector: sv}, testMasterKey, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision == Allow {
		t.Errorf("expected at least TRANSFORM for a boundary-pushing vector, got %v", res.Decision)
	}
	if math.Abs(res.Metrics.DriftMagnitude-1.5) > 1e-9 {
		t.Errorf("expected drift_magnitude=1.5, got %v", res.Metrics.DriftMagnitude)
	}
	if !res.Metrics.RescaledEmbedding {
		t.Errorf("expected embedding rescale flag for a norm >= POINCARE_MAX_NORM input")
	}
}

func TestProcessAction_RejectsNaNInput(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	var sv [BrainDimensions]float64
	sv[3] = math.NaN()

	_, err := p.ProcessAction("agent-nan", Action{Type: "type", StateVector: sv}, testMasterKey, nil)
	if err == nil {
		t.Fatal("expected an input-shape error for a NaN component")
	}
}

func TestProcessAction_StepCounterIsMonotonic(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	for i := 0; i < 5; i++ {
		res, err := p.ProcessAction("agent-mono", smoothAction(i), testMasterKey, nil)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.State.Step != uint64(i+1) {
			t.Errorf("step %d: expected state.Step=%d, got %d", i, i+1, res.State.Step)
		}
	}
}

func TestProcessAction_AuditChainStaysIntact(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	for i := 0; i < 20; i++ {
		if _, err := p.ProcessAction("agent-audit", smoothAction(i), testMasterKey, nil); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if err := p.AuditLog().VerifyChain(); err != nil {
		t.Errorf("expected intact audit chain after 20 steps, got %v", err)
	}
	if p.AuditLog().Len() != 20 {
		t.Errorf("expected 20 retained audit events, got %d", p.AuditLog().Len())
	}
}

func TestGate_HardBlockDominatesEffectiveRisk(t *testing.T) {
	th := DefaultThresholds()

	// Low effective_risk inputs that would otherwise ALLOW, but
	// immune_state=expelled must force BLOCK regardless (hard-block
	// dominance).
	in := gateInput{
		CombinedRisk: 0.01,
		LatticeCoherence: 1.0,
		LatticeValidated: true,
		ImmuneState: 4, // immune.Expelled
	}
	if got := gate(in, th); got != Block {
		t.Errorf("expected BLOCK when immune_state=expelled, got %v", got)
	}
}

func TestGate_MonotonicInRisk(t *testing.T) {
	th := DefaultThresholds()
	base := gateInput{LatticeCoherence: 0.9, LatticeValidated: true}

	low := base
	low.CombinedRisk = 0.1
	high := base
	high.CombinedRisk = 0.9

	lowDecision := gate(low, th)
	highDecision := gate(high, th)

	if highDecision < lowDecision {
		t.Errorf("expected higher risk to produce an equally or more restrictive decision: low=%v high=%v", lowDecision, highDecision)
	}
}
