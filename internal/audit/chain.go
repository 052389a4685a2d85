package audit

import (
	"fmt"
	"sync"
)

// GenesisHash is the prev_hash of the first event in a fresh chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// Log is an in-memory, append-only, hash-chained audit log with a bounded
// capacity. Overflow trims the oldest entry and its hash together, so the
// remaining suffix still verifies against its own first prev_hash.
type Log struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// New creates an audit log bounded to capacity events. capacity<=0 means
// unbounded.
func New(capacity int) *Log {
	return &Log{capacity: capacity}
}

// lastHash returns the self_hash of the most recent event, or GenesisHash
// if the log is empty. Caller must hold l.mu.
func (l *Log) lastHash() string {
	if len(l.events) == 0 {
		return GenesisHash
	}
	return l.events[len(l.events)-1].SelfHash
}

// Append computes prev_hash/self_hash for a new event and adds it to the
// log. Only the Timestamp, Layer, Kind, StateDelta, BoundaryDistance, and
// Metadata fields of ev are used; PrevHash/SelfHash are overwritten.
func (l *Log) Append(ev Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.PrevHash = l.lastHash()
	hash, err := computeSelfHash(ev)
	if err != nil {
		return Event{}, err
	}
	ev.SelfHash = hash

	l.events = append(l.events, ev)

	if l.capacity > 0 && len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}

	return ev, nil
}

// Len returns the number of events currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Events returns a copy of the retained events, oldest first.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// VerifyChain recomputes every self_hash bottom-up from the first retained
// event's prev_hash and compares it against the stored chain. It returns an
// error describing the first mismatch, or nil if the chain is intact.
//
// Because overflow trims from the front, the first retained event's
// prev_hash is not required to equal GenesisHash — verification starts from
// whatever prev_hash that event actually carries.
func (l *Log) VerifyChain() error {
	l.mu.Lock()
	events := make([]Event, len(l.events))
	copy(events, l.events)
	l.mu.Unlock()

	prev := GenesisHash
	if len(events) > 0 {
		prev = events[0].PrevHash
	}

	for i, ev := range events {
		if ev.PrevHash != prev {
			return fmt.Errorf("audit: event %d: prev_hash mismatch: stored %q, expected %q", i, ev.PrevHash, prev)
		}
		want, err := computeSelfHash(ev)
		if err != nil {
			return fmt.Errorf("audit: event %d: %w", i, err)
		}
		if ev.SelfHash != want {
			return fmt.Errorf("audit: event %d: self_hash mismatch: stored %q, recomputed %q", i, ev.SelfHash, want)
		}
		prev = ev.SelfHash
	}

	return nil
}
