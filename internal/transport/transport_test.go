package transport

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/polykernel/polykernel/internal/flux"
	"github.com/polykernel/polykernel/internal/immune"
	"github.com/polykernel/polykernel/internal/kernel"
	"go.uber.org/zap"
)

func signedEnvelope(t *testing.T, nodeID string, priv ed25519.PrivateKey, age time.Duration) Envelope {
	t.Helper()
	env := Envelope{
		NodeID:          nodeID,
		TimestampUnixNs: time.Now().Add(-age).UnixNano(),
		AgentID:         "agent-1",
		Fingerprint: kernel.Fingerprint{
			Step:        42,
			Flux:        0.5,
			FluxState:   flux.Polly,
			ImmuneState: immune.Healthy,
			Coherence:   0.9,
		},
	}
	env.Signature = ed25519.Sign(priv, signatureMessage(env))
	return env
}

func TestServer_Broadcast_AcceptsValidEnvelope(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	var accepted bool
	srv := NewServer("node-a", map[string]ed25519.PublicKey{"node-b": pub}, 30*time.Second,
		func(agentID, nodeID string, env Envelope) { accepted = true }, zap.NewNop())

	env := signedEnvelope(t, "node-b", priv, 0)
	resp, err := srv.Broadcast(context.Background(), &env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("expected envelope to be accepted, got reason %q", resp.RejectionReason)
	}
	if !accepted {
		t.Fatal("expected onAccept callback to fire")
	}
}

func TestServer_Broadcast_RejectsStaleTimestamp(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	srv := NewServer("node-a", map[string]ed25519.PublicKey{"node-b": pub}, 30*time.Second, nil, zap.NewNop())

	env := signedEnvelope(t, "node-b", priv, time.Minute)
	resp, err := srv.Broadcast(context.Background(), &env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted {
		t.Fatal("expected stale envelope to be rejected")
	}
	if resp.RejectionReason != "timestamp_stale" {
		t.Fatalf("expected timestamp_stale, got %q", resp.RejectionReason)
	}
}

func TestServer_Broadcast_RejectsUntrustedPeer(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	srv := NewServer("node-a", map[string]ed25519.PublicKey{}, 30*time.Second, nil, zap.NewNop())

	env := signedEnvelope(t, "node-b", priv, 0)
	resp, err := srv.Broadcast(context.Background(), &env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted {
		t.Fatal("expected untrusted peer to be rejected")
	}
	if resp.RejectionReason != "peer_unknown" {
		t.Fatalf("expected peer_unknown, got %q", resp.RejectionReason)
	}
}

func TestServer_Broadcast_RejectsBadSignature(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	_, otherPriv, _ := ed25519.GenerateKey(nil)
	srv := NewServer("node-a", map[string]ed25519.PublicKey{"node-b": pub}, 30*time.Second, nil, zap.NewNop())

	env := signedEnvelope(t, "node-b", otherPriv, 0)
	resp, err := srv.Broadcast(context.Background(), &env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Accepted {
		t.Fatal("expected envelope signed by wrong key to be rejected")
	}
	if resp.RejectionReason != "signature_invalid" {
		t.Fatalf("expected signature_invalid, got %q", resp.RejectionReason)
	}
}

func TestServer_HealthCheck(t *testing.T) {
	srv := NewServer("node-a", nil, 30*time.Second, nil, zap.NewNop())
	resp, err := srv.HealthCheck(context.Background(), &HealthRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.NodeID != "node-a" || resp.Status != "ok" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestSignatureMessage_DeterministicAndFieldSensitive(t *testing.T) {
	env := Envelope{
		NodeID:          "node-a",
		TimestampUnixNs: 1000,
		AgentID:         "agent-1",
		Fingerprint: kernel.Fingerprint{
			Step:        1,
			Flux:        0.1,
			FluxState:   flux.Polly,
			ImmuneState: immune.Healthy,
			Coherence:   0.5,
		},
	}
	m1 := signatureMessage(env)
	m2 := signatureMessage(env)
	if string(m1) != string(m2) {
		t.Fatal("signatureMessage must be deterministic for identical input")
	}

	env.AgentID = "agent-2"
	m3 := signatureMessage(env)
	if string(m1) == string(m3) {
		t.Fatal("signatureMessage must differ when AgentID differs")
	}
}
