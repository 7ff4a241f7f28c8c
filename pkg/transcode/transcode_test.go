package transcode

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/audio"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

// fakeDecoder/fakeEncoder stand in for the native codecs so pipeline
// behavior can be tested without audio libraries.
type fakeDecoder struct {
	resets int
	closed bool
}

func (d *fakeDecoder) Decode(payload []byte) ([]int16, error) {
	pcm := make([]int16, audio.FrameSamples)
	for i := range pcm {
		if i < len(payload) {
			pcm[i] = int16(payload[i])
		}
	}
	return pcm, nil
}
func (d *fakeDecoder) Reset() error { d.resets++; return nil }
func (d *fakeDecoder) Close() error { d.closed = true; return nil }

type fakeEncoder struct {
	resets int
}

func (e *fakeEncoder) Encode(pcm []int16) ([]byte, error) {
	out := make([]byte, 8)
	for i := range out {
		out[i] = byte(pcm[i])
	}
	return out, nil
}
func (e *fakeEncoder) Reset() error { e.resets++; return nil }
func (e *fakeEncoder) Close() error { return nil }

func fakeStream(cfg Config) (*Stream, *fakeDecoder, *fakeEncoder) {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.ResetGap == 0 {
		cfg.ResetGap = DefaultResetGap
	}
	dec := &fakeDecoder{}
	enc := &fakeEncoder{}
	return &Stream{
		cfg:    cfg,
		target: models.CodecAMRWB,
		dec:    dec,
		enc:    enc,
		log:    slog.Default(),
	}, dec, enc
}

func frame(seq uint32, payload []byte) *models.AudioFrame {
	return &models.AudioFrame{
		Codec:      models.CodecOpus,
		Seq:        seq,
		Origin:     models.DomainMesh,
		Duration:   audio.FrameDuration,
		ReceivedAt: time.Now(),
		Payload:    payload,
	}
}

func TestPassthroughIsByteIdentical(t *testing.T) {
	s, err := NewStream(models.CodecOpus, models.CodecOpus, Config{}, slog.Default())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	defer s.Close()

	payload := []byte{0x78, 0x01, 0x02, 0x03}
	out, err := s.Process(frame(10, payload))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Errorf("passthrough payload = %x, want %x", out.Payload, payload)
	}
	if out.Codec != models.CodecOpus {
		t.Errorf("codec = %q, want opus", out.Codec)
	}
}

func TestOutputSequenceStrictlyIncreasing(t *testing.T) {
	s, _, _ := fakeStream(Config{})
	defer s.Close()

	var last uint32
	for seq := uint32(1); seq <= 5; seq++ {
		out, err := s.Process(frame(seq, []byte{1, 2, 3}))
		if err != nil {
			t.Fatalf("Process(%d): %v", seq, err)
		}
		if out.Seq <= last {
			t.Errorf("seq %d not strictly increasing after %d", out.Seq, last)
		}
		last = out.Seq
	}
}

func TestDeadlineExceededDropsFrame(t *testing.T) {
	s, _, _ := fakeStream(Config{Deadline: 10 * time.Millisecond})
	defer s.Close()

	f := frame(1, []byte{1})
	f.ReceivedAt = time.Now().Add(-50 * time.Millisecond)
	_, err := s.Process(f)
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Errorf("got %v, want ErrDeadlineExceeded", err)
	}
}

func TestGapResetsCodecState(t *testing.T) {
	s, dec, enc := fakeStream(Config{ResetGap: 3})
	defer s.Close()

	if _, err := s.Process(frame(1, []byte{1})); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// Frames 2-4 lost: gap of 3 reaches the reset threshold.
	if _, err := s.Process(frame(5, []byte{1})); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if dec.resets != 1 || enc.resets != 1 {
		t.Errorf("resets = (%d, %d), want (1, 1)", dec.resets, enc.resets)
	}

	// A one-frame gap stays under the threshold.
	if _, err := s.Process(frame(7, []byte{1})); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if dec.resets != 1 {
		t.Errorf("small gap should not reset, resets = %d", dec.resets)
	}
}

func TestMarkerAndDurationPreserved(t *testing.T) {
	s, _, _ := fakeStream(Config{})
	defer s.Close()

	f := frame(1, []byte{1})
	f.Marker = true
	out, err := s.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !out.Marker {
		t.Error("talk-spurt marker should survive transcoding")
	}
	if out.Duration != audio.FrameDuration {
		t.Errorf("duration = %v, want %v", out.Duration, audio.FrameDuration)
	}
}

func TestUnsupportedCodecRejected(t *testing.T) {
	_, err := NewStream("g729", models.CodecOpus, Config{}, slog.Default())
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("got %v, want ErrUnsupportedCodec", err)
	}
}
