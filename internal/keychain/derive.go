// Package keychain implements the Hamiltonian key chain & geodesic monitor
// (component E): HMAC/HKDF key derivation over the fixed 16-polyhedron
// path, geodesic-deviation + curvature intrusion detection, the Langues
// cost function, and flux coupling.
//
// Key derivation:
//
//	ikm = HMAC-SHA256(key=ss, message=intent_fp ‖ epoch_u64_be)
//	K0 = HKDF-SHA256(ikm, salt="PHDM-K0-v1", info="phdm-hamiltonian-seed", len=32)
//
// golang.org/x/crypto/hkdf provides the HKDF extract-and-expand construct
// used here (see DESIGN.md for the dependency note).
package keychain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/polykernel/polykernel/internal/flux"
)

const (
	hkdfSalt = "PHDM-K0-v1"
	hkdfInfo = "phdm-hamiltonian-seed"
	keyLen = 32
)

// DeriveSeedKey computes K0 from a 32-byte shared secret, an intent
// fingerprint, and an epoch integer.
func DeriveSeedKey(sharedSecret []byte, intentFingerprint string, epoch uint64) ([]byte, error) {
	mac := hmac.New(sha256.New, sharedSecret)
	mac.Write([]byte(intentFingerprint))
	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epoch)
	mac.Write(epochBuf[:])
	ikm := mac.Sum(nil)

	reader := hkdf.New(sha256.New, ikm, []byte(hkdfSalt), []byte(hkdfInfo))
	k0 := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, k0); err != nil {
		return nil, err
	}
	return k0, nil
}

// Schedule is the 16-step Hamiltonian-path key schedule: Schedule[i] is
// K_i, the key active at step i. Schedule[16] is the final key, used for
// chain-integrity verification.
type Schedule [17][]byte

// DeriveSchedule walks the fixed 16-polyhedron order, deriving
// K_{i+1} = HMAC-SHA256(key=K_i, message=polyhedron[i].name).
func DeriveSchedule(k0 []byte) Schedule {
	var sched Schedule
	sched[0] = k0
	for i := 0; i < 16; i++ {
		mac := hmac.New(sha256.New, sched[i])
		mac.Write([]byte(flux.Polyhedra[i].Name))
		sched[i+1] = mac.Sum(nil)
	}
	return sched
}

// VerifyChain recomputes the schedule from k0 and reports whether the
// recomputed final key matches finalKey.
func VerifyChain(k0, finalKey []byte) bool {
	sched := DeriveSchedule(k0)
	return hmac.Equal(sched[16], finalKey)
}
