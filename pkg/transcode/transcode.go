// Package transcode converts encoded audio between the two domains'
// codecs through a streaming decode-to-PCM-then-encode pipeline. One
// Stream exists per call and direction; frame ordering within a stream is
// the caller's responsibility (the call worker serializes it).
package transcode

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samsameer/meshriderwave-sub002/pkg/audio"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

var (
	// ErrDeadlineExceeded marks a frame that could not be delivered
	// within the latency budget. PTT drops late audio instead of
	// delivering it; the caller counts these for quality metrics.
	ErrDeadlineExceeded = errors.New("transcode deadline exceeded")
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// DefaultDeadline is the drop threshold measured from frame receipt.
const DefaultDeadline = 60 * time.Millisecond

// DefaultResetGap is the consecutive-missing-frame count that resets
// codec state to stop decoder drift from propagating.
const DefaultResetGap uint32 = 5

// Config tunes a stream.
type Config struct {
	Deadline    time.Duration
	ResetGap    uint32
	OpusBitrate int
	AmrMode     int
}

// Stream transcodes one direction of one call. Not safe for concurrent
// use; the owning call worker is its single writer.
type Stream struct {
	cfg    Config
	target string

	// nil dec/enc means source and target codecs match and frames pass
	// through byte-identical.
	dec audio.Decoder
	enc audio.Encoder

	haveLast bool
	lastSeq  uint32
	outSeq   uint32

	log *slog.Logger
}

// NewStream builds the pipeline for srcCodec -> dstCodec. Matching codecs
// yield a passthrough stream with no codec state at all.
func NewStream(srcCodec, dstCodec string, cfg Config, log *slog.Logger) (*Stream, error) {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.ResetGap == 0 {
		cfg.ResetGap = DefaultResetGap
	}

	s := &Stream{
		cfg:    cfg,
		target: dstCodec,
		log:    log.With("component", "transcode", "src", srcCodec, "dst", dstCodec),
	}
	if srcCodec == dstCodec {
		return s, nil
	}

	dec, err := newDecoder(srcCodec)
	if err != nil {
		return nil, err
	}
	enc, err := newEncoder(dstCodec, cfg)
	if err != nil {
		dec.Close()
		return nil, err
	}
	s.dec = dec
	s.enc = enc
	return s, nil
}

// Process converts one frame to the target codec. The returned frame
// carries a freshly assigned destination sequence number. Late frames
// return ErrDeadlineExceeded and must be dropped by the caller.
func (s *Stream) Process(f *models.AudioFrame) (*models.AudioFrame, error) {
	if s.late(f) {
		return nil, ErrDeadlineExceeded
	}

	out := &models.AudioFrame{
		Codec:      s.target,
		Origin:     f.Origin,
		Duration:   f.Duration,
		Marker:     f.Marker,
		ReceivedAt: f.ReceivedAt,
	}

	if s.dec == nil {
		// Matching codecs: byte-identity passthrough.
		out.Payload = f.Payload
		out.Seq = s.nextSeq()
		return out, nil
	}

	if s.haveLast && f.Seq > s.lastSeq+1 {
		missing := f.Seq - s.lastSeq - 1
		if missing >= s.cfg.ResetGap {
			s.log.Debug("sequence gap, resetting codec state",
				"last_seq", s.lastSeq, "seq", f.Seq, "missing", missing)
			if err := s.dec.Reset(); err != nil {
				return nil, fmt.Errorf("decoder reset failed: %w", err)
			}
			if err := s.enc.Reset(); err != nil {
				return nil, fmt.Errorf("encoder reset failed: %w", err)
			}
		}
	}
	s.lastSeq = f.Seq
	s.haveLast = true

	pcm, err := s.dec.Decode(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	payload, err := s.enc.Encode(pcm)
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}

	// A decode/encode pass that blew the budget is as useless as a frame
	// that arrived late.
	if s.late(f) {
		return nil, ErrDeadlineExceeded
	}

	out.Payload = payload
	out.Seq = s.nextSeq()
	return out, nil
}

func (s *Stream) late(f *models.AudioFrame) bool {
	return !f.ReceivedAt.IsZero() && time.Since(f.ReceivedAt) > s.cfg.Deadline
}

func (s *Stream) nextSeq() uint32 {
	s.outSeq++
	return s.outSeq
}

// Close releases codec state.
func (s *Stream) Close() {
	if s.dec != nil {
		s.dec.Close()
	}
	if s.enc != nil {
		s.enc.Close()
	}
}
