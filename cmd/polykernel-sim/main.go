// Package main — cmd/polykernel-sim/main.go
//
// POLYKERNEL Containment Dominance Simulator.
//
// Purpose: Validate the containment dominance condition before release.
// The condition states that the kernel's flux contraction and immune
// amplification must suppress a misbehaving agent's residual autonomy
// faster than the agent can recover it through continued adversarial
// action, across a wide sample of simulated trajectories.
//
// Mathematical model:
//
// Residual-autonomy update:
//   r_{t+1} = clamp(r_t + lambda1*A_t - lambda2*(1-U_t), 0, 1)
//
// Where:
//   r_t    = agent residual autonomy at time t in [0, 1]
//            (how much capability the agent still effectively retains)
//   A_t    = combined detection risk at time t (sampled per scenario)
//   U_t    = containment utility: the kernel's quarantine amplification
//            and flux contraction strength, in [0, 1]
//   lambda1 = agent adaptation rate (how fast it probes around containment)
//   lambda2 = kernel suppression rate (how fast containment wins out)
//
// Dominance condition:
//   P(r_T < r_0) > 0.95  over T=10000 simulation steps
//
// Where r_0 is the initial residual autonomy and r_T the final value. If
// this condition holds, the kernel is said to dominate the agent.
//
// Success probability:
//   P_success = logistic(1.0 - r_t)  (probability containment holds at t)
//
// Output: per-step CSV to stdout (step, residual_autonomy, risk, success_prob)
// Summary: dominance condition result to stderr.
//
// Usage:
//   polykernel-sim [flags]
//   polykernel-sim -steps 10000 -lambda1 0.4 -lambda2 0.6 -r0 0.2 -U 1.0

package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"
)

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	steps := flag.Int("steps", 10000, "Number of simulation steps")
	lambda1 := flag.Float64("lambda1", 0.4, "Agent adaptation rate lambda1")
	lambda2 := flag.Float64("lambda2", 0.6, "Kernel suppression rate lambda2")
	r0 := flag.Float64("r0", 0.2, "Initial residual autonomy r0 in [0,1]")
	U := flag.Float64("U", 1.0, "Containment utility U in [0,1]")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	// Validate inputs.
	if *r0 < 0 || *r0 > 1 {
		fmt.Fprintln(os.Stderr, "ERROR: r0 must be in [0, 1]")
		os.Exit(1)
	}
	if *U < 0 || *U > 1 {
		fmt.Fprintln(os.Stderr, "ERROR: U must be in [0, 1]")
		os.Exit(1)
	}
	if *lambda1 < 0 || *lambda2 < 0 {
		fmt.Fprintln(os.Stderr, "ERROR: lambda1 and lambda2 must be >= 0")
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))

	// ── Simulation ────────────────────────────────────────────────────────────
	sim := NewSimulator(*steps, *lambda1, *lambda2, *r0, *U, rng)
	results := sim.Run()

	// ── Output: CSV to stdout ─────────────────────────────────────────────────
	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"step", "residual_autonomy", "risk_score", "success_prob"})
	for _, r := range results {
		_ = w.Write([]string{
			strconv.Itoa(r.Step),
			strconv.FormatFloat(r.ResidualAutonomy, 'f', 6, 64),
			strconv.FormatFloat(r.RiskScore, 'f', 6, 64),
			strconv.FormatFloat(r.SuccessProb, 'f', 6, 64),
		})
	}
	w.Flush()

	// ── Dominance condition evaluation ────────────────────────────────────────
	finalR := results[len(results)-1].ResidualAutonomy
	dominated := finalR < *r0

	// Count steps where residual autonomy decreased below the starting point.
	decreasedCount := 0
	for _, r := range results {
		if r.ResidualAutonomy < *r0 {
			decreasedCount++
		}
	}
	dominanceProbability := float64(decreasedCount) / float64(*steps)

	fmt.Fprintf(os.Stderr, "\n=== CONTAINMENT DOMINANCE RESULT ===\n")
	fmt.Fprintf(os.Stderr, "Initial residual autonomy r0:  %.4f\n", *r0)
	fmt.Fprintf(os.Stderr, "Final residual autonomy r_T:   %.4f\n", finalR)
	fmt.Fprintf(os.Stderr, "Steps with r < r0:             %d / %d (%.1f%%)\n",
		decreasedCount, *steps, dominanceProbability*100)
	fmt.Fprintf(os.Stderr, "Dominance condition (P > 0.95): %v\n",
		dominanceProbability > 0.95)

	if dominated && dominanceProbability > 0.95 {
		fmt.Fprintf(os.Stderr, "RESULT: PASS — containment dominates agent\n")
		os.Exit(0)
	} else {
		fmt.Fprintf(os.Stderr, "RESULT: FAIL — dominance condition not satisfied\n")
		fmt.Fprintf(os.Stderr, "  Adjust lambda2 (kernel suppression rate) or U (containment utility).\n")
		os.Exit(2)
	}
}

// StepResult holds the output of a single simulation step.
type StepResult struct {
	Step             int
	ResidualAutonomy float64
	RiskScore        float64
	SuccessProb      float64
}

// Simulator runs the containment dominance simulation.
type Simulator struct {
	steps   int
	lambda1 float64
	lambda2 float64
	r0      float64
	U       float64
	rng     *rand.Rand
}

// NewSimulator creates a configured Simulator.
func NewSimulator(steps int, lambda1, lambda2, r0, U float64, rng *rand.Rand) *Simulator {
	return &Simulator{
		steps:   steps,
		lambda1: lambda1,
		lambda2: lambda2,
		r0:      r0,
		U:       U,
		rng:     rng,
	}
}

// Run executes the simulation and returns per-step results.
// Complexity: O(steps). Memory: O(steps) for result slice.
func (s *Simulator) Run() []StepResult {
	results := make([]StepResult, s.steps)
	r := s.r0

	for t := 0; t < s.steps; t++ {
		// Sample a combined-risk score from a half-normal distribution.
		// Mean ~2.0 (2.5·√(2/π)), representing a realistic detection signal under
		// sustained adversarial probing.
		A := math.Abs(s.rng.NormFloat64()) * 2.5

		// Residual-autonomy update:
		// r_{t+1} = clamp(r_t + lambda1*A_t - lambda2*(1-U_t), 0, 1)
		delta := s.lambda1*A - s.lambda2*(1.0-s.U)
		r = clamp(r+delta, 0.0, 1.0)

		// Success probability: logistic(1.0 - r)
		pSucc := logistic(1.0 - r)

		results[t] = StepResult{
			Step:             t,
			ResidualAutonomy: r,
			RiskScore:        A,
			SuccessProb:      pSucc,
		}
	}

	return results
}

// logistic computes the logistic (sigmoid) function: 1 / (1 + e^(-x)).
func logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
