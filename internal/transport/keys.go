package transport

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// LoadSigningKey reads a raw, hex-encoded Ed25519 private key (64 bytes)
// from path.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transport: read signing key %q: %w", path, err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("transport: decode signing key %q: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("transport: signing key %q has %d bytes, want %d", path, len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// ParseTrustedPeers decodes a node_id -> hex_ed25519_pubkey map (as found
// in config.TransportConfig.TrustedPeerKeys) into a lookup table suitable
// for Server.
func ParseTrustedPeers(keys map[string]string) (map[string]ed25519.PublicKey, error) {
	out := make(map[string]ed25519.PublicKey, len(keys))
	for nodeID, hexKey := range keys {
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("transport: decode peer %q public key: %w", nodeID, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("transport: peer %q public key has %d bytes, want %d", nodeID, len(raw), ed25519.PublicKeySize)
		}
		out[nodeID] = ed25519.PublicKey(raw)
	}
	return out, nil
}
