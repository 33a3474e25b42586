// Package sequence implements the per-(hand, ROI) sequence lifecycle:
// opening a sequence on ROI entry, extending it on continued presence,
// and closing it on exit, plus the staleness janitor and the bounded
// completed-sequence history. Grounded on original_source's
// _update_roi_sequence/_check_sequence_completion/_cleanup_old_sequences.
package sequence

import (
	"time"

	"github.com/gammazero/deque"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

// Transition describes what happened to a sequence on a given frame.
type Transition int

const (
	// NoChange means the key was neither opened, extended, nor closed
	// this frame (the hand was never in the ROI).
	NoChange Transition = iota
	// Opened means a new sequence was created this frame.
	Opened
	// Extended means an existing active sequence absorbed this frame.
	Extended
	// Closed means an active sequence was closed this frame because the
	// hand left the ROI.
	Closed
)

// Result reports the outcome of processing one (hand, roi) observation
// for one frame.
type Result struct {
	Transition Transition
	Sequence   *model.ROISequence // the sequence opened/extended/closed
}

const defaultCompletedHistoryLimit = 50

// Tracker owns the active and completed ROISequences for a single
// session. It is not safe for concurrent use from multiple goroutines;
// per spec.md §5 each session's state is owned by exactly one goroutine.
type Tracker struct {
	active    map[model.SequenceKey]*model.ROISequence
	completed deque.Deque[*model.ROISequence]

	completedLimit  int
	stalenessBudget time.Duration

	nextID func() string
}

// New creates a Tracker. nextID generates sequence ids (normally backed
// by internal/ids); completedLimit bounds the completed-sequence ring
// (default 50 if <= 0); stalenessBudget force-closes sequences idle for
// longer than this (default 30s if <= 0).
func New(nextID func() string, completedLimit int, stalenessBudget time.Duration) *Tracker {
	if completedLimit <= 0 {
		completedLimit = defaultCompletedHistoryLimit
	}
	if stalenessBudget <= 0 {
		stalenessBudget = 30 * time.Second
	}
	return &Tracker{
		active:          make(map[model.SequenceKey]*model.ROISequence),
		completedLimit:  completedLimit,
		stalenessBudget: stalenessBudget,
		nextID:          nextID,
	}
}

// Observe processes one (hand, roi) pair for the current frame.
// inside reports whether the hand's center was inside the ROI this
// frame. When inside is true and no active sequence exists for the key,
// a new sequence is opened with obs as its first observation. When
// inside is true and a sequence exists, obs extends it. When inside is
// false and a sequence exists, it is closed (obs.FrameID/obs.Timestamp
// used as the close stamp, obs is not appended).
func (t *Tracker) Observe(key model.SequenceKey, workerID *int, inside bool, obs model.FrameObservation) Result {
	existing, hasActive := t.active[key]

	switch {
	case inside && !hasActive:
		seq := model.NewROISequence(t.nextID(), key, workerID, obs.FrameID, obs.Timestamp)
		seq.Extend(obs)
		t.active[key] = seq
		return Result{Transition: Opened, Sequence: seq}

	case inside && hasActive:
		existing.Extend(obs)
		return Result{Transition: Extended, Sequence: existing}

	case !inside && hasActive:
		existing.Close(obs.FrameID, obs.Timestamp)
		delete(t.active, key)
		t.pushCompleted(existing)
		return Result{Transition: Closed, Sequence: existing}

	default:
		return Result{Transition: NoChange}
	}
}

func (t *Tracker) pushCompleted(seq *model.ROISequence) {
	t.completed.PushBack(seq)
	for t.completed.Len() > t.completedLimit {
		t.completed.PopFront()
	}
}

// Active returns the currently open sequence for key, if any.
func (t *Tracker) Active(key model.SequenceKey) (*model.ROISequence, bool) {
	seq, ok := t.active[key]
	return seq, ok
}

// ActiveCount returns the number of currently open sequences, used to
// check the bounded-memory invariant P5 (active sequences never exceed
// hands_in_frame x rois).
func (t *Tracker) ActiveCount() int {
	return len(t.active)
}

// Completed returns a snapshot of the completed-sequence ring, oldest
// first, capped at the configured limit.
func (t *Tracker) Completed() []*model.ROISequence {
	out := make([]*model.ROISequence, t.completed.Len())
	for i := 0; i < t.completed.Len(); i++ {
		out[i] = t.completed.At(i)
	}
	return out
}

// ForceCloseStale closes every active sequence whose most recent
// observation is older than the staleness budget, as of now, and
// returns them. Force closure never emits a violation and never
// touches the arbiter's registries; the session janitor purges the
// returned keys' per-sequence dedup entries itself, leaving cooldowns
// in place. A hand that goes unobserved for longer than the budget and
// then reappears inside the ROI therefore opens a second sequence,
// independently eligible for a violation, bounded only by the cooldown
// window (see DESIGN.md).
func (t *Tracker) ForceCloseStale(now time.Time) []*model.ROISequence {
	var closed []*model.ROISequence
	for key, seq := range t.active {
		last := seq.EntryTime
		if n := len(seq.Observations); n > 0 {
			last = seq.Observations[n-1].Timestamp
		}
		if now.Sub(last) > t.stalenessBudget {
			lastFrame := seq.EntryFrameID
			if n := len(seq.Observations); n > 0 {
				lastFrame = seq.Observations[n-1].FrameID
			}
			seq.Close(lastFrame, now)
			delete(t.active, key)
			t.pushCompleted(seq)
			closed = append(closed, seq)
		}
	}
	return closed
}
