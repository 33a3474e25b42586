package model

import "time"

// FrameObservation is one frame's contribution to an open ROISequence.
type FrameObservation struct {
	FrameID                string
	Timestamp              time.Time
	Position               Point
	UsingScooper           bool
	ClosestScooperDistance float64 // +Inf when no scooper was present
}

// ROISequence represents one uninterrupted presence of a given
// HandIdentity inside a given ROI, from the frame it entered to the
// frame it left. At most one sequence per Key may be active at a time;
// once closed a sequence is immutable.
type ROISequence struct {
	SequenceID string
	Key        SequenceKey
	WorkerID   *int

	EntryFrameID string
	EntryTime    time.Time
	ExitFrameID  string
	ExitTime     time.Time

	Observations []FrameObservation

	closed bool
}

// NewROISequence opens a new sequence at the given frame.
func NewROISequence(id string, key SequenceKey, workerID *int, entryFrameID string, entryTime time.Time) *ROISequence {
	return &ROISequence{
		SequenceID:   id,
		Key:          key,
		WorkerID:     workerID,
		EntryFrameID: entryFrameID,
		EntryTime:    entryTime,
	}
}

// Extend appends a frame's observation to an active sequence. It is a
// logic error to extend a closed sequence; callers must check IsActive
// first.
func (s *ROISequence) Extend(obs FrameObservation) {
	if s.closed {
		return
	}
	s.Observations = append(s.Observations, obs)
}

// Close marks the sequence complete at exitFrameID/exitTime. Once
// closed, a sequence is immutable.
func (s *ROISequence) Close(exitFrameID string, exitTime time.Time) {
	if s.closed {
		return
	}
	s.ExitFrameID = exitFrameID
	s.ExitTime = exitTime
	s.closed = true
}

// IsActive reports whether the sequence has not yet been closed.
func (s *ROISequence) IsActive() bool {
	return !s.closed
}

// EntryObservation returns the observation recorded when the sequence
// was opened. The arbiter evaluates violations against this and only
// this observation — later frames of the same sequence are never
// re-evaluated, per spec.
func (s *ROISequence) EntryObservation() (FrameObservation, bool) {
	if len(s.Observations) == 0 {
		return FrameObservation{}, false
	}
	return s.Observations[0], true
}

// Duration returns the elapsed time between entry and exit. Zero if the
// sequence is still active.
func (s *ROISequence) Duration() time.Duration {
	if s.closed {
		return s.ExitTime.Sub(s.EntryTime)
	}
	return 0
}

// ScooperUsagePercent returns the mean of the per-frame UsingScooper
// flags expressed as a percentage in [0, 100].
func (s *ROISequence) ScooperUsagePercent() float64 {
	if len(s.Observations) == 0 {
		return 0
	}
	used := 0
	for _, o := range s.Observations {
		if o.UsingScooper {
			used++
		}
	}
	return float64(used) / float64(len(s.Observations)) * 100
}

// UsedProperly reports whether the sequence's scooper usage percentage
// met the configured compliance threshold. This is informational only:
// the arbiter never consults it, since violations are decided solely at
// the entry frame (see DESIGN.md's Open Question decisions).
func (s *ROISequence) UsedProperly(requiredPercent float64) bool {
	return s.ScooperUsagePercent() >= requiredPercent
}
