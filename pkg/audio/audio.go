// Package audio defines the PCM interchange contract between codec
// implementations. Both domains carry 16 kHz mono voice in 20 ms frames,
// so transcoding needs no resampling stage.
package audio

import "time"

const (
	// SampleRate is 16 kHz wideband voice, mandated on the MCPTT side by
	// AMR-WB and configured to match on the Opus side.
	SampleRate = 16000
	Channels   = 1
	// FrameDuration is the fixed PTT frame size.
	FrameDuration = 20 * time.Millisecond
	// FrameSamples is samples per frame: 20 ms at 16 kHz mono.
	FrameSamples = 320
)

// Decoder turns one encoded frame into PCM. Implementations hold only the
// minimum codec state (prediction history) and must survive Reset without
// reallocation of the underlying native state where possible.
type Decoder interface {
	Decode(payload []byte) ([]int16, error)
	Reset() error
	Close() error
}

// Encoder turns one PCM frame into an encoded frame.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
	Reset() error
	Close() error
}
