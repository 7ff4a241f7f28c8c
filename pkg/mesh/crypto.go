// Package mesh implements the mesh-side payload protection: AES-CCM
// sealing of audio frames under the per-group channel key.
package mesh

import (
	"crypto/aes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	mathRand "math/rand/v2"

	"github.com/pion/dtls/v3/pkg/crypto/ccm"
)

const (
	tagSize   = 8
	nonceSize = 13
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// frameNonce builds the 13-byte CCM nonce from the frame sequence number,
// a digest of the sender identity and the per-frame extra nonce. The same
// (key, seq, sender) pair never repeats within a talk burst because the
// replay window upstream enforces strictly increasing sequence numbers.
func frameNonce(seq uint32, sender string, extraNonce uint32) []byte {
	nonce := make([]byte, nonceSize)
	binary.LittleEndian.PutUint32(nonce[0:], seq)
	digest := sha256.Sum256([]byte(sender))
	copy(nonce[4:8], digest[:4])
	binary.LittleEndian.PutUint32(nonce[8:], extraNonce)
	return nonce
}

// SealFrame encrypts an audio payload under the group channel key. The
// random extra nonce is appended to the ciphertext.
func SealFrame(key []byte, seq uint32, sender string, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	ccmBlock, err := ccm.NewCCM(block, tagSize, nonceSize)
	if err != nil {
		return nil, err
	}

	extraNonce := uint32(mathRand.Int32())
	nonce := frameNonce(seq, sender, extraNonce)
	ciphertext := ccmBlock.Seal(nil, nonce, plaintext, nil)

	extraNonceBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(extraNonceBytes, extraNonce)
	return append(ciphertext, extraNonceBytes...), nil
}

// OpenFrame authenticates and decrypts a sealed audio payload.
func OpenFrame(key []byte, seq uint32, sender string, sealed []byte) ([]byte, error) {
	if len(sealed) < tagSize+4 {
		return nil, ErrCiphertextTooShort
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	ccmBlock, err := ccm.NewCCM(block, tagSize, nonceSize)
	if err != nil {
		return nil, err
	}

	ciphertext := sealed[:len(sealed)-4]
	extraNonce := binary.LittleEndian.Uint32(sealed[len(sealed)-4:])
	nonce := frameNonce(seq, sender, extraNonce)
	return ccmBlock.Open(nil, nonce, ciphertext, nil)
}
