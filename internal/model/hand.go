package model

import "fmt"

// HandIdentity is a best-effort, per-frame-stable label for a hand.
// There is no cross-frame tracker backing this: it is derived from the
// hand's index within a single frame's detection list plus its
// associated worker, if any. Detection ordering within a frame must be
// stable for identities to correlate across frames; a consumer with a
// real tracker (IoU-based or Hungarian matching) may substitute a
// different key generator without changing anything downstream, since
// HandIdentity is opaque to the rest of the pipeline.
type HandIdentity string

// UnassignedWorker is the worker-id component of a HandIdentity when a
// hand could not be associated with any person in the frame.
const UnassignedWorker = "unassigned"

// NewHandIdentity derives a HandIdentity from a hand's index in the
// current frame's detections and its associated worker id, if any.
func NewHandIdentity(handIndex int, workerID *int) HandIdentity {
	worker := UnassignedWorker
	if workerID != nil {
		worker = fmt.Sprintf("%d", *workerID)
	}
	return HandIdentity(fmt.Sprintf("hand-%d:%s", handIndex, worker))
}

// SequenceKey identifies one (hand_identity, roi_name) pair — the unit
// of sequence tracking, cooldown accounting, and dedup.
type SequenceKey struct {
	Hand HandIdentity
	ROI  string
}

func (k SequenceKey) String() string {
	return fmt.Sprintf("%s@%s", k.Hand, k.ROI)
}
