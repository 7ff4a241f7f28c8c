package transcode

import (
	"fmt"

	"github.com/samsameer/meshriderwave-sub002/pkg/audio"
	"github.com/samsameer/meshriderwave-sub002/pkg/audio/amrwb"
	"github.com/samsameer/meshriderwave-sub002/pkg/audio/opus"
	"github.com/samsameer/meshriderwave-sub002/pkg/models"
)

func newDecoder(codec string) (audio.Decoder, error) {
	switch codec {
	case models.CodecOpus:
		return opus.NewDecoder()
	case models.CodecAMRWB:
		return amrwb.NewDecoder()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
}

func newEncoder(codec string, cfg Config) (audio.Encoder, error) {
	switch codec {
	case models.CodecOpus:
		return opus.NewEncoder(cfg.OpusBitrate)
	case models.CodecAMRWB:
		mode := cfg.AmrMode
		if mode == 0 {
			mode = amrwb.DefaultMode
		}
		return amrwb.NewEncoder(mode)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, codec)
	}
}

// CodecFor returns the codec a domain's adapter expects on its audio
// frames: AMR-WB toward MCPTT, Opus toward the mesh.
func CodecFor(d models.Domain) string {
	if d == models.DomainMCPTT {
		return models.CodecAMRWB
	}
	return models.CodecOpus
}
