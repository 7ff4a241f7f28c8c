package amrwb

import (
	"errors"
	"testing"
)

func TestToCRoundTrip(t *testing.T) {
	for mode := uint8(0); mode <= 9; mode++ {
		toc := ToC{Mode: mode, Good: true}
		parsed := ParseToC(toc.Byte())
		if parsed != toc {
			t.Errorf("mode %d: round-trip gave %+v, want %+v", mode, parsed, toc)
		}
	}

	bad := ToC{Mode: Mode1265, Good: false}
	if ParseToC(bad.Byte()).Good {
		t.Error("Q bit should survive round-trip as damaged")
	}
}

func TestFrameSizes(t *testing.T) {
	tests := []struct {
		mode uint8
		size int
	}{
		{Mode660, 18},
		{Mode885, 24},
		{Mode1265, 33},
		{Mode2385, 61},
		{ModeSID, 6},
		{ModeNoData, 1},
		{10, 0}, // reserved
	}
	for _, tt := range tests {
		if got := FrameSize(tt.mode); got != tt.size {
			t.Errorf("FrameSize(%d) = %d, want %d", tt.mode, got, tt.size)
		}
	}
}

func TestValidateFrame(t *testing.T) {
	good := make([]byte, 33)
	good[0] = ToC{Mode: Mode1265, Good: true}.Byte()
	if _, err := ValidateFrame(good); err != nil {
		t.Errorf("valid 12.65 frame rejected: %v", err)
	}

	if _, err := ValidateFrame(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty frame: got %v, want ErrEmptyFrame", err)
	}

	short := good[:20]
	if _, err := ValidateFrame(short); !errors.Is(err, ErrFrameLength) {
		t.Errorf("truncated frame: got %v, want ErrFrameLength", err)
	}

	damaged := make([]byte, 33)
	damaged[0] = ToC{Mode: Mode1265, Good: false}.Byte()
	if _, err := ValidateFrame(damaged); !errors.Is(err, ErrDamagedFrame) {
		t.Errorf("damaged frame: got %v, want ErrDamagedFrame", err)
	}

	reserved := []byte{ToC{Mode: 10, Good: true}.Byte()}
	if _, err := ValidateFrame(reserved); !errors.Is(err, ErrBadFrameType) {
		t.Errorf("reserved FT: got %v, want ErrBadFrameType", err)
	}
}
