// Package contrib — scorer.go
//
// Plugin interface for custom trajectory detectors.
//
// POLYKERNEL's five built-in detectors (internal/detection) are fixed, but
// a deployment may want to score a trajectory with an additional, custom
// signal -- an ML model, a rule-based heuristic, or a domain-specific
// feature extractor -- without forking the detection bank itself. contrib
// is the extension point for that: the primary interface is
// TrajectoryDetector, which plugins register via RegisterDetector().
//
// Plugin registration:
//   Plugins register themselves in an init() function using
//   RegisterDetector(). Neither the detection bank nor the config consults
//   the registry; a caller looks a detector up by name with GetDetector()
//   and runs it itself.
//
//   Built-in contrib detector: "zscore" (reference implementation below).
//
// Plugin contract:
//   - Score() must be goroutine-safe (called from multiple agent workers).
//   - Score() must return quickly.
//   - Score() must not allocate per-call state beyond the trajectory slice.
//   - Score() must not call blocking I/O (no disk, no network).
//   - Score() must not panic; return an error instead.
//   - Name() must return a stable, unique string (used as the registry key).
//
// Example plugin (contrib/detectors/zscore/zscore.go):
//
//   package zscore
//
//   import (
//     "math"
//     "github.com/polykernel/polykernel/contrib"
//     "github.com/polykernel/polykernel/internal/detection"
//   )
//
//   func init() {
//     contrib.RegisterDetector(&ZScoreDetector{})
//   }
//
//   type ZScoreDetector struct{}
//
//   func (z *ZScoreDetector) Name() string { return "zscore" }
//
//   func (z *ZScoreDetector) Score(trajectory []detection.Point) (detection.Result, error) {
//     ...
//   }

package contrib

import (
	"fmt"
	"math"
	"sync"

	"github.com/polykernel/polykernel/internal/detection"
)

// ─── TrajectoryDetector interface ────────────────────────────────────────────

// TrajectoryDetector is the interface that custom detectors must implement
// to participate alongside the five built-in detectors.
//
// Contract:
//   - Score() must be goroutine-safe.
//   - Score() must not panic.
//   - Name() must return a stable, unique string.
type TrajectoryDetector interface {
	// Name returns the unique identifier for this detector. Used as the
	// registry key (RegisterDetector / GetDetector).
	Name() string

	// Score computes a detection.Result for the given trajectory. The
	// trajectory is ordered oldest-to-newest, mirroring what the built-in
	// detectors receive.
	Score(trajectory []detection.Point) (detection.Result, error)
}

// ─── Registry ─────────────────────────────────────────────────────────────────

var (
	registryMu sync.RWMutex
	registry   = make(map[string]TrajectoryDetector)
)

// RegisterDetector registers a custom trajectory detector.
// Panics if a detector with the same name is already registered.
// Call from init() functions in plugin packages.
func RegisterDetector(d TrajectoryDetector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[d.Name()]; exists {
		panic(fmt.Sprintf("contrib: detector %q already registered", d.Name()))
	}
	registry[d.Name()] = d
}

// GetDetector returns the registered detector with the given name.
// Returns an error if no detector with that name is registered.
func GetDetector(name string) (TrajectoryDetector, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("contrib: detector %q not registered (available: %v)", name, listNames())
	}
	return d, nil
}

// ListDetectors returns the names of all registered detectors.
func ListDetectors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listNames()
}

func listNames() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	return names
}

// ─── Example contrib detector: Z-Score ───────────────────────────────────────
// Provided as a reference implementation in the contrib package itself.
// Community detectors should live in contrib/detectors/<name>/<name>.go.

// ZScoreDetector flags a trajectory whose final point's embedded
// coordinates deviate from the trajectory mean by an RMS z-score above 2.0.
// Registered as "zscore".
type ZScoreDetector struct{}

func init() {
	RegisterDetector(&ZScoreDetector{})
}

func (z *ZScoreDetector) Name() string { return "zscore" }

func (z *ZScoreDetector) Score(trajectory []detection.Point) (detection.Result, error) {
	if len(trajectory) < 2 {
		return detection.Result{}, nil
	}

	n := len(trajectory[0].Embedded)
	mean := make([]float64, n)
	for _, p := range trajectory {
		for i, x := range p.Embedded {
			mean[i] += x
		}
	}
	for i := range mean {
		mean[i] /= float64(len(trajectory))
	}

	stddev := make([]float64, n)
	for _, p := range trajectory {
		for i, x := range p.Embedded {
			d := x - mean[i]
			stddev[i] += d * d
		}
	}
	for i := range stddev {
		stddev[i] = math.Sqrt(stddev[i] / float64(len(trajectory)))
	}

	last := trajectory[len(trajectory)-1].Embedded
	var sumSq float64
	count := 0
	for i, x := range last {
		if stddev[i] == 0 {
			continue
		}
		zs := (x - mean[i]) / stddev[i]
		sumSq += zs * zs
		count++
	}
	if count == 0 {
		return detection.Result{}, nil
	}

	score := math.Sqrt(sumSq / float64(count))
	return detection.Result{
		Score:    score,
		Flagged:  score > 2.0,
		Evidence: fmt.Sprintf("rms_zscore=%.4f", score),
	}, nil
}
