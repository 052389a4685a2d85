// bank.go — combined assessment across the five detectors.
//
// Formula: combined_score = weighted_mean(scores) with fixed
// weights; flag_count = Σ flagged; any_flagged = flag_count ≥ 1; decision is
// derived from combined_score via configured {quarantine, escalate, deny}
// thresholds.

package detection

// Run evaluates all five detectors over trajectory and produces the
// combined Assessment. tongue is the expected tongue-index t ∈ {0..5}
//.
func Run(trajectory []Point, tongue int, w Weights, detThresh PerDetectorThresholds, combThresh Thresholds) Assessment {
	phase := PhaseDistance(trajectory, tongue, detThresh.Phase)
	curvature := CurvatureAccumulation(trajectory, detThresh.Curvature)
	lissajous := ThreatPlaneLissajous(trajectory, detThresh.Lissajous)
	drift := DecimalDriftMagnitude(trajectory, detThresh.DecimalDrift)
	sixTonic := SixTonicOscillation(trajectory, detThresh.SixTonic)

	combined := w.Phase*phase.Score +
		w.Curvature*curvature.Score +
		w.Lissajous*lissajous.Score +
		w.DecimalDrift*drift.Score +
		w.SixTonic*sixTonic.Score
	weightSum := w.Phase + w.Curvature + w.Lissajous + w.DecimalDrift + w.SixTonic
	if weightSum > 0 {
		combined /= weightSum
	}

	flagCount := 0
	for _, flagged := range []bool{phase.Flagged, curvature.Flagged, lissajous.Flagged, drift.Flagged, sixTonic.Flagged} {
		if flagged {
			flagCount++
		}
	}

	var decision Decision
	switch {
	case combined >= combThresh.Deny:
		decision = Deny
	case combined >= combThresh.Escalate:
		decision = Escalate
	case combined >= combThresh.Quarantine:
		decision = Quarantine
	default:
		decision = Allow
	}

	return Assessment{
		Phase: phase,
		Curvature: curvature,
		Lissajous: lissajous,
		DecimalDrift: drift,
		SixTonic: sixTonic,
		CombinedScore: combined,
		FlagCount: flagCount,
		AnyFlagged: flagCount >= 1,
		Decision: decision,
	}
}
