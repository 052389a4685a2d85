package immune

import "testing"

func TestAssess_HealthyOnNoFlags(t *testing.T) {
	r := NewRecord("agent-1", 64)
	cfg := DefaultConfig()
	res := r.Assess(AssessInput{AnyFlagged: false}, cfg)
	if res.State != Healthy {
		t.Errorf("expected healthy, got %v", res.State)
	}
}

func TestAssess_MonitoringAfterRepeatedFlags(t *testing.T) {
	r := NewRecord("agent-2", 64)
	cfg := DefaultConfig()
	var res AssessResult
	for i := 0; i < 5; i++ {
		res = r.Assess(AssessInput{AnyFlagged: true, FlagCount: 1, CombinedScore: 0.5}, cfg)
	}
	if res.State < Monitoring {
		t.Errorf("expected at least monitoring after 5 consecutive flags, got %v suspicion=%v", res.State, res.Suspicion)
	}
	if res.Suspicion <= 0.3 {
		t.Errorf("expected suspicion > 0.3, got %v", res.Suspicion)
	}
}

func TestAssess_QuarantineRequiresConsensus(t *testing.T) {
	r := NewRecord("agent-3", 64)
	cfg := DefaultConfig()
	for i := 0; i < 4; i++ {
		r.Assess(AssessInput{AnyFlagged: true, FlagCount: 2, CombinedScore: 0.9}, cfg)
	}
	if r.Current() != Inflamed {
		t.Fatalf("expected inflamed without consensus, got %v (suspicion=%v)", r.Current(), r.Suspicion())
	}

	r.Accuse("peer-a")
	r.Accuse("peer-b")
	r.Accuse("peer-c")
	res := r.Assess(AssessInput{AnyFlagged: true, FlagCount: 2, CombinedScore: 0.9}, cfg)
	if res.State != Quarantined {
		t.Errorf("expected quarantined once consensus holds, got %v", res.State)
	}
}

func TestAssess_ExpulsionIsTerminal(t *testing.T) {
	r := NewRecord("agent-4", 64)
	cfg := DefaultConfig()
	r.Accuse("p1")
	r.Accuse("p2")
	r.Accuse("p3")

	// Sustained flagging with three accusers. Suspicion crosses the
	// expulsion threshold (8.0) during the first cycle, so the loop exits
	// early; each further cycle would release and re-accuse the record.
	for cycle := 0; cycle < 4; cycle++ {
		for i := 0; i < 10; i++ {
			r.Assess(AssessInput{AnyFlagged: true, FlagCount: 3, CombinedScore: 1.0}, cfg)
		}
		if r.Current() == Expelled {
			break
		}
		r.ReleaseFromQuarantine()
		r.Accuse("p1")
		r.Accuse("p2")
		r.Accuse("p3")
	}

	if r.Current() != Expelled {
		t.Fatalf("expected expelled after repeated quarantines, got %v", r.Current())
	}

	// Subsequent assessments, even with zero risk, must not move off Expelled.
	res := r.Assess(AssessInput{AnyFlagged: false}, cfg)
	if res.State != Expelled {
		t.Errorf("expected expelled to remain terminal, got %v", res.State)
	}

	r.ReleaseFromQuarantine() // must be a no-op
	if r.Current() != Expelled {
		t.Errorf("release must not un-expel a terminal record")
	}
}

func TestRiskModifier_Ordering(t *testing.T) {
	amp := 2.0
	if !(RiskModifier(Healthy, amp) < RiskModifier(Monitoring, amp)) {
		t.Errorf("expected healthy < monitoring risk modifier")
	}
	if !(RiskModifier(Monitoring, amp) < RiskModifier(Inflamed, amp)) {
		t.Errorf("expected monitoring < inflamed risk modifier")
	}
	if !(RiskModifier(Inflamed, amp) < RiskModifier(Quarantined, amp)) {
		t.Errorf("expected inflamed < quarantined risk modifier")
	}
	if RiskModifier(Expelled, amp) <= RiskModifier(Quarantined, amp) {
		t.Errorf("expected expelled risk modifier to dominate")
	}
}

func TestState_IsTerminal(t *testing.T) {
	if !Expelled.IsTerminal() {
		t.Errorf("expected Expelled to be terminal")
	}
	for _, s := range []State{Healthy, Monitoring, Inflamed, Quarantined} {
		if s.IsTerminal() {
			t.Errorf("expected %v to not be terminal", s)
		}
	}
}
