package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
)

func TestDeriveChannelKeyDeterministic(t *testing.T) {
	master := []byte("mcptt group master key material")

	a, err := DeriveChannelKey(master, "squad-alpha")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, err := DeriveChannelKey(master, "squad-alpha")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("derivation must be deterministic")
	}
	if len(a) != MeshChannelKeySize {
		t.Fatalf("expected %d byte key, got %d", MeshChannelKeySize, len(a))
	}

	c, err := DeriveChannelKey(master, "squad-bravo")
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("different groups must derive different keys")
	}
}

func TestDeriveChannelKeyRejectsEmptyMaster(t *testing.T) {
	if _, err := DeriveChannelKey(nil, "squad-alpha"); err == nil {
		t.Fatal("expected error for empty master key")
	}
}

func TestParseMeshKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	raw, err := ParseMeshKey(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !bytes.Equal(raw, pub) {
		t.Fatal("parsed key mismatch")
	}

	if _, err := ParseMeshKey("zz"); err == nil {
		t.Fatal("expected error for non-hex input")
	}
	if _, err := ParseMeshKey("abcd"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestEd25519ToX25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}

	x, err := Ed25519ToX25519(pub)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if len(x) != 32 {
		t.Fatalf("expected 32 byte X25519 key, got %d", len(x))
	}

	if _, err := Ed25519ToX25519(bytes.Repeat([]byte{0xff}, 32)); err == nil {
		t.Fatal("expected error for invalid point encoding")
	}
}
