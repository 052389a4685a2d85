package transport

import (
	"crypto/ed25519"
	"encoding/hex"
	"path/filepath"
	"testing"

	"os"
)

func TestLoadSigningKey_RoundTrip(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	path := filepath.Join(t.TempDir(), "signing.key")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadSigningKey(path)
	if err != nil {
		t.Fatalf("LoadSigningKey: %v", err)
	}
	if string(loaded) != string(priv) {
		t.Fatal("loaded key does not match original")
	}
}

func TestParseTrustedPeers(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	keys := map[string]string{"node-b": hex.EncodeToString(pub)}

	peers, err := ParseTrustedPeers(keys)
	if err != nil {
		t.Fatalf("ParseTrustedPeers: %v", err)
	}
	if len(peers) != 1 || string(peers["node-b"]) != string(pub) {
		t.Fatal("unexpected parsed peer map")
	}
}

func TestParseTrustedPeers_RejectsMalformedKey(t *testing.T) {
	if _, err := ParseTrustedPeers(map[string]string{"node-b": "not-hex"}); err == nil {
		t.Fatal("expected error for malformed key")
	}
}
