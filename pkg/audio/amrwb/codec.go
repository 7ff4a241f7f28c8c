package amrwb

/*
#cgo LDFLAGS: -lopencore-amrwb -lvo-amrwbenc
#include <opencore-amrwb/dec_if.h>
#include <vo-amrwbenc/enc_if.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/samsameer/meshriderwave-sub002/pkg/audio"
)

// maxFrameSize is the largest octet-aligned frame (23.85 kbps mode).
const maxFrameSize = 61

var errClosed = errors.New("amrwb: codec closed")

// Decoder decodes AMR-WB frames to PCM via libopencore-amrwb.
type Decoder struct {
	st  unsafe.Pointer
	pcm [audio.FrameSamples]C.short
}

// NewDecoder allocates a native decoder state.
func NewDecoder() (*Decoder, error) {
	st := C.D_IF_init()
	if st == nil {
		return nil, errors.New("amrwb: failed to init decoder")
	}
	return &Decoder{st: st}, nil
}

// Decode decodes one octet-aligned frame (ToC byte included) into a
// 20 ms PCM frame.
func (d *Decoder) Decode(payload []byte) ([]int16, error) {
	if d.st == nil {
		return nil, errClosed
	}
	if _, err := ValidateFrame(payload); err != nil {
		return nil, err
	}
	C.D_IF_decode(d.st, (*C.uchar)(unsafe.Pointer(&payload[0])), &d.pcm[0], 0)
	out := make([]int16, audio.FrameSamples)
	for i := range out {
		out[i] = int16(d.pcm[i])
	}
	return out, nil
}

// Reset reallocates the native state, discarding prediction history.
func (d *Decoder) Reset() error {
	if d.st != nil {
		C.D_IF_exit(d.st)
	}
	d.st = C.D_IF_init()
	if d.st == nil {
		return errors.New("amrwb: failed to reset decoder")
	}
	return nil
}

// Close releases the native decoder state.
func (d *Decoder) Close() error {
	if d.st != nil {
		C.D_IF_exit(d.st)
		d.st = nil
	}
	return nil
}

// Encoder encodes PCM to AMR-WB frames via vo-amrwbenc.
type Encoder struct {
	st   unsafe.Pointer
	mode int
	buf  [maxFrameSize]C.uchar
}

// NewEncoder allocates a native encoder state at the given mode; a
// negative mode selects the MCPTT default of 12.65 kbps.
func NewEncoder(mode int) (*Encoder, error) {
	if mode < 0 {
		mode = DefaultMode
	}
	if FrameSize(uint8(mode)) == 0 || mode > Mode2385 {
		return nil, fmt.Errorf("amrwb: invalid encoder mode %d", mode)
	}
	st := C.E_IF_init()
	if st == nil {
		return nil, errors.New("amrwb: failed to init encoder")
	}
	return &Encoder{st: st, mode: mode}, nil
}

// Encode encodes one 20 ms PCM frame. The returned frame carries its ToC
// byte and is a valid octet-aligned AMR-WB bitstream unit.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if e.st == nil {
		return nil, errClosed
	}
	if len(pcm) != audio.FrameSamples {
		return nil, fmt.Errorf("amrwb: frame must be %d samples, got %d", audio.FrameSamples, len(pcm))
	}
	var speech [audio.FrameSamples]C.short
	for i, s := range pcm {
		speech[i] = C.short(s)
	}
	n := C.E_IF_encode(e.st, C.short(e.mode), &speech[0], &e.buf[0], 0)
	if n <= 0 {
		return nil, fmt.Errorf("amrwb: encode failed: %d", int(n))
	}
	out := make([]byte, int(n))
	for i := range out {
		out[i] = byte(e.buf[i])
	}
	return out, nil
}

// Reset reallocates the native state.
func (e *Encoder) Reset() error {
	if e.st != nil {
		C.E_IF_exit(e.st)
	}
	e.st = C.E_IF_init()
	if e.st == nil {
		return errors.New("amrwb: failed to reset encoder")
	}
	return nil
}

// Close releases the native encoder state.
func (e *Encoder) Close() error {
	if e.st != nil {
		C.E_IF_exit(e.st)
		e.st = nil
	}
	return nil
}
