// Package opus wraps libopus for the mesh-side voice codec: 16 kHz mono,
// 20 ms frames, VoIP mode, 12 kbps nominal per the MCPTT codec profile.
package opus

import (
	"errors"
	"fmt"

	hraban "gopkg.in/hraban/opus.v2"

	"github.com/samsameer/meshriderwave-sub002/pkg/audio"
)

const (
	// DefaultBitrate is 12 kbps, the MCPTT-profile operating point.
	DefaultBitrate = 12000
	// maxPacketSize bounds one encoded frame.
	maxPacketSize = 4000
)

var ErrShortFrame = errors.New("opus: decoded frame shorter than 20ms")

// Decoder decodes Opus frames to PCM.
type Decoder struct {
	dec *hraban.Decoder
	pcm []int16
}

// NewDecoder creates a 16 kHz mono Opus decoder.
func NewDecoder() (*Decoder, error) {
	dec, err := hraban.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: failed to create decoder: %w", err)
	}
	return &Decoder{dec: dec, pcm: make([]int16, audio.FrameSamples)}, nil
}

// Decode decodes one Opus frame. An empty payload runs packet loss
// concealment for one frame interval instead.
func (d *Decoder) Decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		if err := d.dec.DecodePLC(d.pcm); err != nil {
			return nil, fmt.Errorf("opus: plc failed: %w", err)
		}
		out := make([]int16, audio.FrameSamples)
		copy(out, d.pcm)
		return out, nil
	}
	n, err := d.dec.Decode(payload, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus: decode failed: %w", err)
	}
	if n < audio.FrameSamples {
		return nil, ErrShortFrame
	}
	out := make([]int16, n)
	copy(out, d.pcm[:n])
	return out, nil
}

// Reset discards decoder prediction state by recreating the native
// decoder; libopus exposes no cheaper reset through this binding.
func (d *Decoder) Reset() error {
	dec, err := hraban.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return fmt.Errorf("opus: failed to reset decoder: %w", err)
	}
	d.dec = dec
	return nil
}

// Close releases the decoder. The binding frees native state with the Go
// value, so this only drops the reference.
func (d *Decoder) Close() error {
	d.dec = nil
	return nil
}

// Encoder encodes PCM to Opus frames.
type Encoder struct {
	enc     *hraban.Encoder
	bitrate int
	buf     []byte
}

// NewEncoder creates a 16 kHz mono VoIP-mode Opus encoder.
func NewEncoder(bitrate int) (*Encoder, error) {
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	enc, err := newNativeEncoder(bitrate)
	if err != nil {
		return nil, err
	}
	return &Encoder{enc: enc, bitrate: bitrate, buf: make([]byte, maxPacketSize)}, nil
}

func newNativeEncoder(bitrate int) (*hraban.Encoder, error) {
	enc, err := hraban.NewEncoder(audio.SampleRate, audio.Channels, hraban.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus: failed to create encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("opus: failed to set bitrate: %w", err)
	}
	return enc, nil
}

// Encode encodes one 20 ms PCM frame.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != audio.FrameSamples {
		return nil, fmt.Errorf("opus: frame must be %d samples, got %d", audio.FrameSamples, len(pcm))
	}
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("opus: encode failed: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

// Reset discards encoder prediction state.
func (e *Encoder) Reset() error {
	enc, err := newNativeEncoder(e.bitrate)
	if err != nil {
		return err
	}
	e.enc = enc
	return nil
}

// Close releases the encoder.
func (e *Encoder) Close() error {
	e.enc = nil
	return nil
}
