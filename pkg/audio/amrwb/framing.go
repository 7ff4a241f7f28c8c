// Package amrwb implements the MCPTT-side voice codec: AMR-WB frame
// handling per RFC 4867 (octet-aligned) with decode/encode through
// libopencore-amrwb and vo-amrwbenc.
package amrwb

import (
	"errors"
	"fmt"
)

// AMR-WB frame types (FT field of the ToC byte).
const (
	Mode660    = 0 // 6.60 kbps
	Mode885    = 1 // 8.85 kbps
	Mode1265   = 2 // 12.65 kbps, the 3GPP MCPTT default operating mode
	Mode1425   = 3
	Mode1585   = 4
	Mode1825   = 5
	Mode1985   = 6
	Mode2305   = 7
	Mode2385   = 8
	ModeSID    = 9 // comfort noise
	ModeNoData = 15
)

// DefaultMode is the encoder operating mode.
const DefaultMode = Mode1265

// frameSizes maps FT to the total octet-aligned frame size including the
// ToC byte (RFC 4867 table, AMR-WB column).
var frameSizes = [16]int{18, 24, 33, 37, 41, 47, 51, 59, 61, 6, 0, 0, 0, 0, 0, 1}

var (
	ErrEmptyFrame   = errors.New("amrwb: empty frame")
	ErrBadFrameType = errors.New("amrwb: reserved frame type")
	ErrFrameLength  = errors.New("amrwb: frame length does not match mode")
	ErrDamagedFrame = errors.New("amrwb: frame marked damaged")
)

// ToC describes the table-of-contents byte leading each frame.
type ToC struct {
	Mode uint8 // FT, bits 3-6
	Good bool  // Q bit
}

// ParseToC extracts the ToC from the first octet of a frame.
func ParseToC(b byte) ToC {
	return ToC{
		Mode: (b >> 3) & 0x0F,
		Good: (b>>2)&0x01 == 1,
	}
}

// Byte renders the ToC back to its wire form.
func (t ToC) Byte() byte {
	b := (t.Mode & 0x0F) << 3
	if t.Good {
		b |= 1 << 2
	}
	return b
}

// FrameSize returns the total size in bytes (ToC included) of a frame of
// the given mode, or 0 for reserved frame types.
func FrameSize(mode uint8) int {
	if int(mode) >= len(frameSizes) {
		return 0
	}
	return frameSizes[mode]
}

// ValidateFrame checks that payload is one well-formed octet-aligned
// AMR-WB frame. This is the gateway's wire-level obligation: it must only
// emit, and only accept, valid AMR-WB bitstream frames.
func ValidateFrame(payload []byte) (ToC, error) {
	if len(payload) == 0 {
		return ToC{}, ErrEmptyFrame
	}
	toc := ParseToC(payload[0])
	size := FrameSize(toc.Mode)
	if size == 0 {
		return toc, fmt.Errorf("%w: FT=%d", ErrBadFrameType, toc.Mode)
	}
	if len(payload) != size {
		return toc, fmt.Errorf("%w: FT=%d expects %d bytes, got %d",
			ErrFrameLength, toc.Mode, size, len(payload))
	}
	if !toc.Good {
		return toc, ErrDamagedFrame
	}
	return toc, nil
}
