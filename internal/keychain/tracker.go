// tracker.go — per-agent bookkeeping that composes the schedule, rhythm
// window, and running intrusion/step counters into the single object the
// kernel holds per agent.

package keychain

// Tracker is the mutable per-agent geodesic-monitor state. It is not
// goroutine-safe on its own; the kernel serialises access per agent_id
// instead.
type Tracker struct {
	Schedule Schedule
	Rhythm RhythmWindow
	IntrusionCount int
	TotalSteps int
}

// NewTracker derives the schedule for k0 and returns a fresh Tracker.
func NewTracker(k0 []byte) *Tracker {
	return &Tracker{Schedule: DeriveSchedule(k0)}
}

// StepResult bundles everything one geodesic-monitor step produces.
type StepResult struct {
	Monitor MonitorResult
	Cost float64
	LanguesDecision LanguesDecision
	Escalated bool
	InducedTrust float64
}

// Step runs one full geodesic-monitor pass: intrusion detection, Langues
// cost, escalation check, and flux coupling, updating the tracker's
// running counters and rhythm window.
func (tr *Tracker) Step(l Langues, tau float64, mp MonitorParams, cp CostParams) StepResult {
	m := Monitor(l, tau, mp)
	tr.Rhythm.Push(m.IsIntrusion)
	tr.TotalSteps++
	if m.IsIntrusion {
		tr.IntrusionCount++
	}

	cost := LanguesCost(l.ToVector(), tau, cp)
	decision := ClassifyCost(cost, cp)
	escalated := Escalation(tr.IntrusionCount, tr.TotalSteps, mp.MaxIntrusions, mp.RateThreshold)
	trust := FluxCoupling(m.Deviation, escalated, mp.EpsSnap)

	return StepResult{
		Monitor: m,
		Cost: cost,
		LanguesDecision: decision,
		Escalated: escalated,
		InducedTrust: trust,
	}
}
