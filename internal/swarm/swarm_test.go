package swarm

import "testing"

func TestHive_AccusersReturnsDistinctDancers(t *testing.T) {
	h := NewHive(10)
	h.Record(Dance{Dancer: "a", Target: "victim", Magnitude: 1.0, DecayRate: 0.01, Timestamp: 0})
	h.Record(Dance{Dancer: "b", Target: "victim", Magnitude: 1.0, DecayRate: 0.01, Timestamp: 0})
	h.Record(Dance{Dancer: "a", Target: "victim", Magnitude: 0.5, DecayRate: 0.01, Timestamp: 0})
	h.Record(Dance{Dancer: "c", Target: "other", Magnitude: 1.0, DecayRate: 0.01, Timestamp: 0})

	accusers := h.Accusers("victim", 1)
	if len(accusers) != 2 {
		t.Fatalf("expected 2 distinct accusers, got %v", accusers)
	}
}

func TestDance_DecaysToZero(t *testing.T) {
	h := NewHive(10)
	h.Record(Dance{Dancer: "a", Target: "victim", Magnitude: 1.0, DecayRate: 0.5, Timestamp: 0})

	accusers := h.Accusers("victim", 10) // far past full decay
	if len(accusers) != 0 {
		t.Errorf("expected fully decayed dance to drop out, got %v", accusers)
	}
}

func TestHive_CapacityEvictsOldest(t *testing.T) {
	h := NewHive(2)
	h.Record(Dance{Dancer: "a", Target: "x", Magnitude: 1})
	h.Record(Dance{Dancer: "b", Target: "x", Magnitude: 1})
	h.Record(Dance{Dancer: "c", Target: "x", Magnitude: 1})

	if h.Len() != 2 {
		t.Fatalf("expected capacity-bounded hive to retain 2 dances, got %d", h.Len())
	}
}

func TestHive_PruneRemovesDecayedDances(t *testing.T) {
	h := NewHive(10)
	h.Record(Dance{Dancer: "a", Target: "x", Magnitude: 1.0, DecayRate: 1.0, Timestamp: 0})
	h.Prune(5)
	if h.Len() != 0 {
		t.Errorf("expected Prune to remove a fully decayed dance, got len=%d", h.Len())
	}
}
