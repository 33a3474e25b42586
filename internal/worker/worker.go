// Package worker implements the optional WorkerTracker telemetry,
// spec.md §4.7: bounded per-worker history and best-effort motion
// classification. Never gates a violation decision. Grounded on
// original_source/services/violation_detector/main.py's
// WorkerTracker/_analyze_movement.
package worker

import (
	"math"
	"time"

	"github.com/gammazero/deque"

	"github.com/scoopguard/violation-pipeline/internal/geometry"
	"github.com/scoopguard/violation-pipeline/internal/model"
)

const (
	maxDetectionHistory  = 50
	maxPositionHistory   = 20
	motionWindow         = 5
	inactiveAfter        = 30 * time.Second
	positionSmoothFactor = 0.4
)

// Tracker accumulates one worker's recent detections and hand positions
// and classifies their motion pattern on demand.
type Tracker struct {
	WorkerID int

	detections *deque.Deque[model.Detection]
	positions  *deque.Deque[model.Point]
	smoother   *geometry.TrajectorySmoother
	smoothed   model.Point
	lastSeen   time.Time
}

// NewTracker constructs a Tracker for one worker id.
func NewTracker(workerID int) *Tracker {
	return &Tracker{
		WorkerID:   workerID,
		detections: new(deque.Deque[model.Detection]),
		positions:  new(deque.Deque[model.Point]),
		smoother:   geometry.NewTrajectorySmoother(positionSmoothFactor),
	}
}

// Observe records one frame's detection and hand position for this
// worker.
func (t *Tracker) Observe(det model.Detection, handPos model.Point, ts time.Time) {
	t.detections.PushBack(det)
	for t.detections.Len() > maxDetectionHistory {
		t.detections.PopFront()
	}
	t.positions.PushBack(handPos)
	for t.positions.Len() > maxPositionHistory {
		t.positions.PopFront()
	}
	smoothed := t.smoother.Update(geometry.Point{X: handPos.X, Y: handPos.Y})
	t.smoothed = model.Point{X: smoothed.X, Y: smoothed.Y}
	t.lastSeen = ts
}

// SmoothedPosition returns the worker's current hand position with a
// per-axis Kalman filter applied, damping single-frame detector jitter
// for display/telemetry consumers that plot a worker's track. It does
// not feed MovementPattern, whose reversal/step thresholds are
// calibrated against raw per-frame positions.
func (t *Tracker) SmoothedPosition() model.Point {
	return t.smoothed
}

// Inactive reports whether this worker has not been observed for longer
// than the inactivity budget, as of now. The pipeline uses this to
// discard stale workers from its Registry.
func (t *Tracker) Inactive(now time.Time) bool {
	return now.Sub(t.lastSeen) > inactiveAfter
}

// MovementPattern classifies the worker's last ≤5 hand positions into
// an ActionType, spec.md §4.7. Telemetry only.
func (t *Tracker) MovementPattern() model.ActionType {
	n := t.positions.Len()
	if n < 2 {
		return model.ActionUnknown
	}
	start := 0
	if n > motionWindow {
		start = n - motionWindow
	}

	var totalStep float64
	var steps int
	var reversals int
	var prevDX, prevDY float64
	haveDirection := false

	for i := start + 1; i < n; i++ {
		prev := t.positions.At(i - 1)
		cur := t.positions.At(i)
		dx, dy := cur.X-prev.X, cur.Y-prev.Y
		step := math.Hypot(dx, dy)
		totalStep += step
		steps++

		if haveDirection && step > 0 {
			if dot(prevDX, prevDY, dx, dy) < 0 {
				reversals++
			}
		}
		if step > 0 {
			prevDX, prevDY = dx, dy
			haveDirection = true
		}
	}

	if steps == 0 {
		return model.ActionUnknown
	}
	avgStep := totalStep / float64(steps)

	switch {
	case reversals >= 2 && avgStep >= 15 && avgStep <= 40:
		return model.ActionCleaning
	case avgStep < 8:
		return model.ActionIdle
	case avgStep > 12 && reversals <= 1:
		return model.ActionGrabbing
	default:
		return model.ActionUnknown
	}
}

func dot(ax, ay, bx, by float64) float64 {
	return ax*bx + ay*by
}
