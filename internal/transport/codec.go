// Package transport implements the optional multi-instance broadcast layer:
// a thin gRPC + Ed25519 envelope exchange that lets independent kernel
// instances share per-agent fingerprints so an external coordinator can run
// the BFT quorum helper (internal/quorum) across instances, realizing
// cross-instance consensus as a layer on top of the single-instance kernel
// rather than a kernel-internal concern.
//
// The TLS 1.3 mTLS gRPC server and envelope verification sequence
// (timestamp freshness, peer trust, Ed25519 signature) are carried over
// plain Go structs rather than protobuf-generated stubs -- this module has
// no protoc-generated package to import, so the wire messages are encoded
// with encoding/gob under a codec registered as gRPC's default subtype
// ("proto") rather than through generated .pb.go bindings.
package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "proto"

// gobCodec implements google.golang.org/grpc/encoding.Codec using
// encoding/gob. Registering it under the name "proto" makes it the codec
// gRPC selects by default, since client and server here exchange no other
// content-subtype.
type gobCodec struct{}

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("transport: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("transport: gob decode: %w", err)
	}
	return nil
}

func (gobCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
