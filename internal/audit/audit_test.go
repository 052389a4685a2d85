package audit

import (
	"testing"
	"time"
)

func appendN(t *testing.T, l *Log, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ev, err := l.Append(Event{
			Timestamp:        base.Add(time.Duration(i) * time.Second),
			Layer:            "kernel",
			Kind:             "decision",
			StateDelta:       "healthy->monitoring",
			BoundaryDistance: float64(i) * 0.1,
			Metadata:         map[string]interface{}{"step": i},
		})
		if err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestLog_VerifyChain_IntactChain(t *testing.T) {
	l := New(0)
	appendN(t, l, 10)

	if err := l.VerifyChain(); err != nil {
		t.Fatalf("expected intact chain to verify, got %v", err)
	}
}

func TestLog_FirstEventChainsFromGenesis(t *testing.T) {
	l := New(0)
	events := appendN(t, l, 1)
	if events[0].PrevHash != GenesisHash {
		t.Errorf("expected first event to chain from genesis, got %q", events[0].PrevHash)
	}
}

func TestLog_SelfHashChaining(t *testing.T) {
	l := New(0)
	events := appendN(t, l, 3)
	for i := 1; i < len(events); i++ {
		if events[i].PrevHash != events[i-1].SelfHash {
			t.Errorf("event %d: prev_hash %q does not match event %d's self_hash %q", i, events[i].PrevHash, i-1, events[i-1].SelfHash)
		}
	}
}

func TestLog_TamperDetection_StateDelta(t *testing.T) {
	l := New(0)
	appendN(t, l, 5)

	l.events[2].StateDelta = "tampered"
	if err := l.VerifyChain(); err == nil {
		t.Fatal("expected tampering with state_delta to break verification")
	}
}

func TestLog_TamperDetection_BoundaryDistance(t *testing.T) {
	l := New(0)
	appendN(t, l, 5)

	l.events[2].BoundaryDistance += 100
	if err := l.VerifyChain(); err == nil {
		t.Fatal("expected tampering with boundary_distance to break verification")
	}
}

func TestLog_MetadataNotHashed(t *testing.T) {
	l := New(0)
	appendN(t, l, 2)

	l.events[0].Metadata["step"] = "mutated"
	if err := l.VerifyChain(); err != nil {
		t.Fatalf("metadata mutation should not break verification, got %v", err)
	}
}

func TestLog_OverflowTrimsOldest(t *testing.T) {
	l := New(3)
	appendN(t, l, 10)

	if l.Len() != 3 {
		t.Fatalf("expected capacity-bounded log to retain 3 events, got %d", l.Len())
	}
	if err := l.VerifyChain(); err != nil {
		t.Fatalf("expected trimmed log to still verify internally, got %v", err)
	}
}

func TestLog_Events_ReturnsCopy(t *testing.T) {
	l := New(0)
	appendN(t, l, 2)

	events := l.Events()
	events[0].StateDelta = "mutated-copy"

	if err := l.VerifyChain(); err != nil {
		t.Fatalf("mutating a returned copy must not affect the log, got %v", err)
	}
}
