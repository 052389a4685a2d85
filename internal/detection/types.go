// Package detection implements the five independent anomaly scorers of the
// detection bank (component B) plus their combined assessment.
//
// Each detector is a pure function of a trajectory of embedded points;
// none of them carry state across calls. The kernel is responsible for
// assembling the trajectory and for acting on the combined assessment.
package detection

// Point is a single trajectory sample: the raw 21D state, its Poincaré-ball
// embedding, the hyperbolic distance from the origin at that step, the
// Menger curvature of the local triple (0 at the trajectory endpoints), and
// the step's logical timestamp (a step counter, not wall-clock time).
type Point struct {
	Step uint64
	State [21]float64
	Embedded [21]float64
	Distance float64
	Curvature float64
}

// Result is the output of a single detector.
type Result struct {
	Score float64
	Flagged bool
	Evidence string
}

// Assessment is the combined output of all five detectors.
type Assessment struct {
	Phase Result
	Curvature Result
	Lissajous Result
	DecimalDrift Result
	SixTonic Result

	CombinedScore float64
	FlagCount int
	AnyFlagged bool
	Decision Decision
}

// Decision is the detection bank's own four-way allow/quarantine/escalate/
// deny recommendation, distinct from the kernel gate's final three-way
// decision (internal/kernel.Decision: allow/transform/block).
type Decision int

const (
	Allow Decision = iota
	Quarantine
	Escalate
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "ALLOW"
	case Quarantine:
		return "QUARANTINE"
	case Escalate:
		return "ESCALATE"
	case Deny:
		return "DENY"
	default:
		return "UNKNOWN"
	}
}

// Weights holds the fixed per-detector weights used in the combined score.
type Weights struct {
	Phase float64
	Curvature float64
	Lissajous float64
	DecimalDrift float64
	SixTonic float64
}

// DefaultWeights returns an even weighting across the five detectors.
func DefaultWeights() Weights {
	return Weights{
		Phase: 0.2,
		Curvature: 0.2,
		Lissajous: 0.2,
		DecimalDrift: 0.2,
		SixTonic: 0.2,
	}
}

// Thresholds holds the combined-score boundaries that drive Decision.
type Thresholds struct {
	Quarantine float64
	Escalate float64
	Deny float64
}

// DefaultThresholds returns a conservative default threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Quarantine: 0.3,
		Escalate: 0.6,
		Deny: 0.85,
	}
}

// PerDetectorThresholds holds the flagging threshold for each of the five
// detectors. Each is independent of the combined Thresholds above.
type PerDetectorThresholds struct {
	Phase float64
	Curvature float64
	Lissajous float64
	DecimalDrift float64
	SixTonic float64
}

// DefaultPerDetectorThresholds returns the default per-detector flag thresholds.
func DefaultPerDetectorThresholds() PerDetectorThresholds {
	return PerDetectorThresholds{
		Phase: 0.5,
		Curvature: 0.5,
		Lissajous: 0.5,
		DecimalDrift: 0.5,
		SixTonic: 0.5,
	}
}
