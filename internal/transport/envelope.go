package transport

import (
	"encoding/binary"
	"math"

	"github.com/polykernel/polykernel/internal/kernel"
)

// Envelope is one signed broadcast of a single agent's fingerprint from one
// kernel instance to its peers (the "BFT consensus across multiple
// kernel instances" is realized as a thin transport around the quorum
// helper, not a kernel-internal mechanism).
type Envelope struct {
	NodeID string
	TimestampUnixNs int64
	AgentID string
	Fingerprint kernel.Fingerprint
	Signature []byte
}

// AckResponse is the broadcast acknowledgement.
type AckResponse struct {
	Accepted bool
	RejectionReason string
}

// HealthRequest is an empty health probe.
type HealthRequest struct{}

// HealthResponse reports a peer's liveness.
type HealthResponse struct {
	NodeID string
	Status string
	UptimeSeconds int64
}

// signatureMessage builds the canonical byte sequence signed by the sender
// and verified by the receiver: field-by-field, with numeric fields in
// fixed-width encoding, the NodeID and AgentID strings appended raw (no
// length prefix), and the signature field itself excluded.
func signatureMessage(e Envelope) []byte {
	var buf []byte
	buf = append(buf, []byte(e.NodeID)...)
	ts := make([]byte, 8)
	binary.LittleEndian.PutUint64(ts, uint64(e.TimestampUnixNs))
	buf = append(buf, ts...)
	buf = append(buf, []byte(e.AgentID)...)

	step := make([]byte, 8)
	binary.LittleEndian.PutUint64(step, e.Fingerprint.Step)
	buf = append(buf, step...)

	flux := make([]byte, 8)
	binary.LittleEndian.PutUint64(flux, math.Float64bits(e.Fingerprint.Flux))
	buf = append(buf, flux...)

	coherence := make([]byte, 8)
	binary.LittleEndian.PutUint64(coherence, math.Float64bits(e.Fingerprint.Coherence))
	buf = append(buf, coherence...)

	buf = append(buf, byte(e.Fingerprint.FluxState))
	buf = append(buf, byte(e.Fingerprint.ImmuneState))
	return buf
}
