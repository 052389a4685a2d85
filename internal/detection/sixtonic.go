// sixtonic.go — detector 5: six-tonic oscillation.
//
// Formula: FFT of the phase-angle time series (the PHASE
// block mean per step); flag when the dominant frequency is absent
// (static trajectory), displaced (wrong tonic — not a multiple of the
// expected six-tonic fundamental), or duplicated from an earlier window
// (replay — the same dominant-frequency fingerprint recurs after the
// window has moved on).
//
// A direct O(n²) DFT is used rather than an FFT library: trajectories are
// short (tens to low hundreds of steps) so the naive transform is cheap,
// and it keeps this detector free of any additional dependency.

package detection

import "math"

const sixTonicWindow = 16

// SixTonicOscillation computes detector 5 over a trajectory.
func SixTonicOscillation(trajectory []Point, threshold float64) Result {
	if len(trajectory) < 4 {
		return Result{Score: 0, Flagged: false, Evidence: "trajectory too short"}
	}

	series := make([]float64, len(trajectory))
	for i, p := range trajectory {
		var sum float64
		for j := phaseBlockStart; j < phaseBlockEnd; j++ {
			sum += p.State[j]
		}
		series[i] = sum / float64(phaseBlockEnd-phaseBlockStart)
	}

	mags := dftMagnitudes(series)
	dominantBin, dominantMag := dominantFrequency(mags)

	totalEnergy := 0.0
	oscEnergy := 0.0 // energy outside the DC bin
	for k, m := range mags {
		totalEnergy += m
		if k > 0 {
			oscEnergy += m
		}
	}

	var score float64
	var evidence string
	switch {
	case oscEnergy < 1e-9:
		// Static trajectory: no oscillation energy at all.
		score = 1.0
		evidence = "static"
	default:
		// Expected six-tonic fundamental sits at bin n/6 (six equally
		// spaced tonics around the circle per cycle).
		expectedBin := len(series) / 6
		if expectedBin < 1 {
			expectedBin = 1
		}
		displacement := math.Abs(float64(dominantBin-expectedBin)) / float64(len(series))
		concentration := dominantMag / totalEnergy

		replay := detectReplay(series)

		score = math.Min(displacement*2+(1-concentration)*0.5, 1.0)
		if replay {
			score = math.Max(score, 0.9)
			evidence = "replay"
		} else {
			evidence = "displacement=" + formatFloat(displacement)
		}
	}

	return Result{
		Score: score,
		Flagged: score > threshold,
		Evidence: evidence,
	}
}

// dftMagnitudes computes |X_k| for k = 0..n/2 via a direct DFT.
func dftMagnitudes(series []float64) []float64 {
	n := len(series)
	half := n/2 + 1
	mags := make([]float64, half)
	for k := 0; k < half; k++ {
		var re, im float64
		for t, x := range series {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += x * math.Cos(angle)
			im += x * math.Sin(angle)
		}
		mags[k] = math.Sqrt(re*re + im*im)
	}
	return mags
}

// dominantFrequency returns the bin index (skipping DC) with the highest
// magnitude, and that magnitude.
func dominantFrequency(mags []float64) (int, float64) {
	bestBin := 0
	bestMag := 0.0
	for k := 1; k < len(mags); k++ {
		if mags[k] > bestMag {
			bestMag = mags[k]
			bestBin = k
		}
	}
	return bestBin, bestMag
}

// detectReplay compares the dominant-frequency magnitude of the first two
// non-overlapping 16-sample windows (series[0:16] and series[16:32]); a
// magnitude ratio within 2% suggests a replayed segment rather than organic
// continuation. Later windows are not compared.
func detectReplay(series []float64) bool {
	if len(series) < sixTonicWindow*2 {
		return false
	}
	first := series[:sixTonicWindow]
	second := series[sixTonicWindow: sixTonicWindow*2]

	_, firstMag := dominantFrequency(dftMagnitudes(first))
	_, secondMag := dominantFrequency(dftMagnitudes(second))

	if firstMag < 1e-9 {
		return false
	}
	ratio := secondMag / firstMag
	return ratio > 0.98 && ratio < 1.02
}
