package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// MeshChannelKeySize is the AES key size used for mesh audio payloads.
	MeshChannelKeySize = 16
)

// channel key derivation context, fixed so both ends derive the same key
var channelKeyInfo = []byte("meshriderwave/channel-key/v1")

// DeriveChannelKey derives the mesh-side channel key for an MCPTT group
// via HKDF-SHA256. The derivation is one-way: mesh-side compromise cannot
// recover the MCPTT group key material it was seeded from.
func DeriveChannelKey(mcpttGroupKey []byte, groupID string) ([]byte, error) {
	if len(mcpttGroupKey) == 0 {
		return nil, fmt.Errorf("empty MCPTT group key")
	}
	r := hkdf.New(sha256.New, mcpttGroupKey, []byte(groupID), channelKeyInfo)
	key := make([]byte, MeshChannelKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive channel key: %w", err)
	}
	return key, nil
}

// ParseMeshKey decodes and validates a hex-encoded Ed25519 mesh identity.
func ParseMeshKey(meshKey string) ([]byte, error) {
	raw, err := hex.DecodeString(meshKey)
	if err != nil {
		return nil, fmt.Errorf("invalid mesh key encoding: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid mesh key length: %d", len(raw))
	}
	return raw, nil
}

// Ed25519ToX25519 converts a mesh Ed25519 public identity key to its
// X25519 form for session key agreement, by converting the Edwards point
// to Montgomery form.
func Ed25519ToX25519(edPubKey []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPubKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}
