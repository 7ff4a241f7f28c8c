package gateway

// SequenceState enforces strictly increasing media sequence numbers for
// one direction of one call. Replayed or reordered-behind frames are
// rejected; PTT audio tolerates a dropped frame better than a replayed
// one. State is owned by the call worker, no locking.
type SequenceState struct {
	initialized bool
	last        uint32
	rejected    uint64
}

// Accept reports whether seq advances the window. The first frame of a
// talk burst establishes the baseline.
func (s *SequenceState) Accept(seq uint32) bool {
	if !s.initialized {
		s.initialized = true
		s.last = seq
		return true
	}
	if seq > s.last {
		s.last = seq
		return true
	}
	s.rejected++
	return false
}

// Reset clears the baseline, for a new talk burst after a grant change.
func (s *SequenceState) Reset() {
	s.initialized = false
	s.rejected = 0
}

// Rejected counts frames dropped by replay protection since the last reset.
func (s *SequenceState) Rejected() uint64 {
	return s.rejected
}
