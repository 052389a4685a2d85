// drift.go — detector 4: decimal drift magnitude.
//
// Formula: a statistic over the rounding behaviour of the
// state vector, intended to catch a generator that bypasses the upstream
// evaluator pipeline (values that are suspiciously uniform, e.g. exact
// multiples of a round step, or suspiciously "synthetic", e.g. excessive
// decimal entropy far beyond what the evaluator's 21D encoder produces).
//
// We measure the fractional part of each component after scaling by 10^4
// and compare the variance of those fractions with 1/12, the variance of a
// uniform spread over [0,1), which is treated as "natural" and scores 0.
// Fractions that are too concentrated (variance below 1/12, e.g. rounded
// values) or too spread toward 0 and 1 (variance above 1/12) both score
// high.

package detection

import "math"

// DecimalDriftMagnitude computes detector 4 over a trajectory.
func DecimalDriftMagnitude(trajectory []Point, threshold float64) Result {
	if len(trajectory) == 0 {
		return Result{Score: 0, Flagged: false, Evidence: "empty trajectory"}
	}

	var fracSumSq, fracSum float64
	count := 0
	for _, p := range trajectory {
		for _, x := range p.State {
			scaled := x * 1e4
			frac := scaled - math.Floor(scaled)
			fracSum += frac
			fracSumSq += frac * frac
			count++
		}
	}
	if count == 0 {
		return Result{Score: 0, Flagged: false, Evidence: "no components"}
	}
	mean := fracSum / float64(count)
	variance := fracSumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}

	// A natural fractional distribution over [0,1) has variance ~1/12
	// (uniform). Deviation from that in either direction is suspicious.
	const naturalVariance = 1.0 / 12.0
	deviation := math.Abs(variance-naturalVariance) / naturalVariance
	score := math.Min(deviation, 1.0)

	return Result{
		Score: score,
		Flagged: score > threshold,
		Evidence: "frac_variance=" + formatFloat(variance),
	}
}
