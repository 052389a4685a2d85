// Package audit implements the append-only hash-chained audit log: every
// kernel decision is recorded as an Event linked to its predecessor by a
// SHA256 chain, so the full log (or
// any suffix of it) can be verified without trusting the storage layer.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Event is a single audit log record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Layer string `json:"layer"`
	Kind string `json:"kind"`
	StateDelta string `json:"state_delta"`
	BoundaryDistance float64 `json:"boundary_distance"`
	Metadata map[string]interface{} `json:"metadata_blob,omitempty"`
	PrevHash string `json:"prev_hash"`
	SelfHash string `json:"self_hash"`
}

// canonicalForm is the subset of an Event's fields that participate in
// self_hash. Metadata is deliberately excluded: it is free-form and not
// required to be deterministic or reproducible across replays, unlike
// the fields that drive a decision.
type canonicalForm struct {
	PrevHash string `json:"prev_hash"`
	Timestamp int64 `json:"timestamp"`
	Layer string `json:"layer"`
	Kind string `json:"kind"`
	StateDelta string `json:"state_delta"`
	BoundaryDistance string `json:"boundary_distance"`
}

// computeSelfHash computes self_hash_i = SHA256(prev_hash_{i-1} || canonical_serialize(event_i)).
func computeSelfHash(e Event) (string, error) {
	canon := canonicalForm{
		PrevHash: e.PrevHash,
		Timestamp: e.Timestamp.UTC().UnixNano(),
		Layer: e.Layer,
		Kind: e.Kind,
		StateDelta: e.StateDelta,
		BoundaryDistance: fmt.Sprintf("%.8f", e.BoundaryDistance),
	}

	data, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("audit: marshal canonical form: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
