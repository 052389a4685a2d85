package detection

import (
	"math"
	"testing"
)

func smoothTrajectory(n int, amplitude, center float64) []Point {
	traj := make([]Point, n)
	for i := 0; i < n; i++ {
		var state [21]float64
		state[0] = center + amplitude*math.Sin(float64(i)*0.1)
		traj[i] = Point{
			Step:      uint64(i),
			State:     state,
			Embedded:  state,
			Distance:  math.Abs(state[0]),
			Curvature: 0,
		}
	}
	return traj
}

func TestDetectionBank_EmptyTrajectory(t *testing.T) {
	assessment := Run(nil, 0, DefaultWeights(), DefaultPerDetectorThresholds(), DefaultThresholds())
	if assessment.CombinedScore != 0 {
		t.Errorf("expected combined score 0 for empty trajectory, got %v", assessment.CombinedScore)
	}
	if assessment.AnyFlagged {
		t.Errorf("expected no flags for empty trajectory")
	}
	if assessment.Decision != Allow {
		t.Errorf("expected ALLOW for empty trajectory, got %v", assessment.Decision)
	}
}

func TestDetectionBank_VeryShortTrajectory(t *testing.T) {
	traj := smoothTrajectory(2, 0.1, 0.95)
	assessment := Run(traj, 0, DefaultWeights(), DefaultPerDetectorThresholds(), DefaultThresholds())
	if assessment.Curvature.Flagged {
		t.Errorf("curvature detector should not flag with <3 points")
	}
}

func TestPhaseDistance_Monotonic(t *testing.T) {
	near := PhaseDistance(smoothTrajectory(10, 0.01, 0.1), 0, 1.1)
	far := PhaseDistance(smoothTrajectory(10, 0.01, 3.0), 0, 1.1)
	if far.Score < near.Score {
		t.Errorf("expected larger phase deviation to score higher: near=%v far=%v", near.Score, far.Score)
	}
}

func TestCurvatureAccumulation_StraightLineIsZero(t *testing.T) {
	traj := make([]Point, 5)
	for i := range traj {
		var e [21]float64
		e[0] = float64(i)
		traj[i] = Point{Embedded: e}
	}
	r := CurvatureAccumulation(traj, 0.5)
	if r.Score > 1e-9 {
		t.Errorf("expected zero curvature for a straight line, got %v", r.Score)
	}
}

func TestSixTonicOscillation_StaticFlags(t *testing.T) {
	traj := make([]Point, 20)
	for i := range traj {
		var s [21]float64
		s[6] = 1.0 // constant phase, no oscillation
		traj[i] = Point{State: s}
	}
	r := SixTonicOscillation(traj, 0.5)
	if !r.Flagged {
		t.Errorf("expected static trajectory to flag the six-tonic detector")
	}
}

func TestDecisionThresholds(t *testing.T) {
	thresh := DefaultThresholds()
	if thresh.Quarantine >= thresh.Escalate || thresh.Escalate >= thresh.Deny {
		t.Fatalf("thresholds must be strictly increasing: %+v", thresh)
	}
}
