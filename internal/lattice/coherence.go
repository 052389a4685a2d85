// coherence.go — coherence scoring and threat-phason construction
//.

package lattice

import "math"

// CoherenceWeights are the fixed weights of the coherence combination.
type CoherenceWeights struct {
	Displacement float64
	Structure float64
	Static float64
	Interference float64
}

// DefaultCoherenceWeights returns the fixed (0.35, 0.25, 0.25, 0.15) weighting.
func DefaultCoherenceWeights() CoherenceWeights {
	return CoherenceWeights{
		Displacement: 0.35,
		Structure: 0.25,
		Static: 0.25,
		Interference: 0.15,
	}
}

// Result is the full dual-lattice pass output consumed by the kernel gate.
type Result struct {
	Static StaticResult
	Dynamic DynamicResult
	Coherence float64
	Validated bool
}

// ModeratedInterference computes a [0,1] interference score from how close
// a perpendicular component (Coherence passes the static projection's) sits
// to the acceptance
// boundary: interference is highest right at the boundary (where thick and
// thin tiles meet) and lowest at the center or far outside.
func ModeratedInterference(perp [3]float64, acceptanceRadius float64) float64 {
	n := norm3(perp)
	if acceptanceRadius <= 0 {
		return 0
	}
	ratio := n / acceptanceRadius
	// Peaks at ratio=1 (the boundary), falls off on both sides.
	return math.Max(0, 1-math.Abs(ratio-1))
}

// Coherence combines the four sub-scores per the fixed weighting.
func Coherence(static StaticResult, dynamic DynamicResult, acceptanceRadius float64, w CoherenceWeights) float64 {
	displacementScore := 1 / (1 + 5*dynamic.Displacement)

	structureScore := 0.0
	if dynamic.StructurePreserved {
		structureScore = 1.0
	}

	staticScore := 0.3
	if static.Accepted {
		staticScore = 1.0
	}

	interference := ModeratedInterference(static.Perpendicular, acceptanceRadius)
	moderatedInterference := 1 - interference // less interference -> more coherent

	return w.Displacement*displacementScore +
		w.Structure*structureScore +
		w.Static*staticScore +
		w.Interference*moderatedInterference
}

// Run performs the full dual-lattice pass: static projection, dynamic
// phason transform, and coherence/validation scoring.
func Run(hyper [6]float64, shift PhasonShift, acceptanceRadius, maxPhasonAmplitude, coherenceThreshold float64) Result {
	static := StaticProject(hyper, acceptanceRadius)
	dynamic := DynamicTransform(static, shift, maxPhasonAmplitude)
	coherence := Coherence(static, dynamic, acceptanceRadius, DefaultCoherenceWeights())

	validated := static.Accepted && dynamic.StructurePreserved && coherence >= coherenceThreshold

	return Result{Static: static, Dynamic: dynamic, Coherence: coherence, Validated: validated}
}

// ThreatPhason builds the phason shift used for a given anomaly-dim set and
// risk level: magnitude = clip01(threat) * maxAmplitude *
// coupling; direction from the anomaly-dim unit sum, or a golden-angle
// rotation per step if there are no anomaly dims.
func ThreatPhason(anomalyDims []int, threat, maxAmplitude, coupling float64, step int) PhasonShift {
	clipped := threat
	if clipped < 0 {
		clipped = 0
	}
	if clipped > 1 {
		clipped = 1
	}
	magnitude := clipped * maxAmplitude * coupling

	var direction [3]float64
	if len(anomalyDims) == 0 {
		const goldenAngle = 2.399963229728653
		theta := float64(step) * goldenAngle
		direction = [3]float64{math.Cos(theta), math.Sin(theta), 0}
	} else {
		for _, d := range anomalyDims {
			// Anomaly dims index the 21D state; fold into the 3
			// perpendicular axes by modulus so any index contributes.
			axis := d % 3
			direction[axis] += 1.0
		}
		n := norm3(direction)
		if n > 1e-12 {
			for i := range direction {
				direction[i] /= n
			}
		}
	}

	return PhasonShift{Direction: direction, Magnitude: magnitude}
}
