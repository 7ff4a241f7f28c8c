package models

import "time"

// Audio codec identifiers. The MCPTT side carries AMR-WB per 3GPP,
// the mesh side carries Opus.
const (
	CodecAMRWB = "amr-wb"
	CodecOpus  = "opus"
)

// AudioFrame is a timestamped, fixed-duration unit of encoded audio.
// ReceivedAt is stamped by the adapter on receipt and drives the
// transcode deadline; Seq is the per-call, per-direction sequence number.
type AudioFrame struct {
	Codec      string        `json:"codec"`
	Seq        uint32        `json:"seq"`
	Origin     Domain        `json:"origin"`
	Duration   time.Duration `json:"duration"`
	Marker     bool          `json:"marker,omitempty"` // first frame of a talk spurt
	ReceivedAt time.Time     `json:"-"`
	Payload    []byte        `json:"payload"`
}
