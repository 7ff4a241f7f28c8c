package mesh

import (
	"bytes"
	"testing"

	"github.com/samsameer/meshriderwave-sub002/pkg/identity"
)

func channelKey(t *testing.T, group string) []byte {
	t.Helper()
	key, err := identity.DeriveChannelKey([]byte("group master key"), group)
	if err != nil {
		t.Fatalf("failed to derive channel key: %v", err)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := channelKey(t, "squad-alpha")
	plaintext := []byte{0x78, 0x0c, 0x40, 0x01, 0x02, 0x03}

	sealed, err := SealFrame(key, 42, "ab12cd34", plaintext)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed frame leaks plaintext")
	}

	opened, err := OpenFrame(key, 42, "ab12cd34", sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: %x != %x", opened, plaintext)
	}
}

func TestOpenRejectsTamperedFrame(t *testing.T) {
	key := channelKey(t, "squad-alpha")
	sealed, err := SealFrame(key, 7, "ab12cd34", []byte("audio"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	sealed[0] ^= 0xff

	if _, err := OpenFrame(key, 7, "ab12cd34", sealed); err == nil {
		t.Fatal("expected authentication failure on tampered frame")
	}
}

func TestOpenRejectsWrongContext(t *testing.T) {
	key := channelKey(t, "squad-alpha")
	sealed, err := SealFrame(key, 7, "ab12cd34", []byte("audio"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	if _, err := OpenFrame(key, 8, "ab12cd34", sealed); err == nil {
		t.Fatal("expected failure with wrong sequence number")
	}
	if _, err := OpenFrame(key, 7, "ef56ab78", sealed); err == nil {
		t.Fatal("expected failure with wrong sender")
	}
	other := channelKey(t, "squad-bravo")
	if _, err := OpenFrame(other, 7, "ab12cd34", sealed); err == nil {
		t.Fatal("expected failure with wrong group key")
	}
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	key := channelKey(t, "squad-alpha")
	if _, err := OpenFrame(key, 1, "ab12cd34", []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
}
