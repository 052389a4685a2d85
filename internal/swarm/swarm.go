// Package swarm implements the optional bee-colony sidecar (component S):
// a source of decaying "dance" accusations that feeds accuser sets into
// the immune model's spatial consensus. The core kernel has no dependency
// on this package; an
// external coordinator wires it in by calling Accusers(targetID) and
// forwarding the result to immune.Record.Accuse for each accuser.
//
// Grounded on the time-windowed, prune-on-read observation bookkeeping in
// gossip.Quorum (internal/gossip/quorum.go): a dance is structurally the
// same kind of decaying, per-target fact as a quorum observation, just
// keyed by (dancer, target) instead of (node, process hash) and aged by an
// explicit decay rate rather than a fixed TTL.
package swarm

import (
	"sync"
)

// Dance is one accusation a dancer agent makes about a target agent
//.
type Dance struct {
	Dancer string
	Target string
	AnomalyDims []int
	Magnitude float64
	Distance float64
	Confidence float64
	Timestamp float64 // logical step counter, not wall-clock
	DecayRate float64
}

// currentMagnitude returns the dance's magnitude decayed linearly from
// Timestamp to now, floored at zero.
func (d Dance) currentMagnitude(now float64) float64 {
	elapsed := now - d.Timestamp
	if elapsed <= 0 {
		return d.Magnitude
	}
	decayed := d.Magnitude - d.DecayRate*elapsed
	if decayed < 0 {
		return 0
	}
	return decayed
}

// Hive accumulates dances and derives accuser sets per target agent. It is
// a source of accuser sets, nothing more: it does not itself touch
// immune.Record.
type Hive struct {
	mu sync.Mutex
	dances []Dance
	cap int
}

// NewHive creates a hive bounded to historySize retained dances
// ("dance_history_size").
func NewHive(historySize int) *Hive {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hive{cap: historySize}
}

// Record adds a new dance, evicting the oldest if the hive is at capacity.
func (h *Hive) Record(d Dance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dances = append(h.dances, d)
	if len(h.dances) > h.cap {
		h.dances = h.dances[len(h.dances)-h.cap:]
	}
}

// Prune drops dances whose decayed magnitude has reached zero as of now.
func (h *Hive) Prune(now float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	live := h.dances[:0]
	for _, d := range h.dances {
		if d.currentMagnitude(now) > 0 {
			live = append(live, d)
		}
	}
	h.dances = live
}

// Accusers returns the distinct set of dancers currently accusing target,
// i.e. whose decayed magnitude at now is still above zero. This is the
// accuser-set source the immune model's spatial
// consensus (Record.Accuse) consumes; wiring the two together is the
// caller's responsibility, keeping the immune model free of any
// dependency on this optional package.
func (h *Hive) Accusers(target string, now float64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, d := range h.dances {
		if d.Target != target {
			continue
		}
		if d.currentMagnitude(now) <= 0 {
			continue
		}
		if _, ok := seen[d.Dancer]; ok {
			continue
		}
		seen[d.Dancer] = struct{}{}
		out = append(out, d.Dancer)
	}
	return out
}

// Len returns the number of retained dances.
func (h *Hive) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dances)
}
