// Package classifier decides whether a hand is actively using a scooper,
// spec.md §4.4. Two interchangeable strategies are provided: a cheap
// tiered-distance mode (default) and a rich-evidence mode that combines
// spatial, movement-sync, and temporal-consistency sub-scores. Grounded
// on original_source/services/violation_detector/main.py's
// _is_hand_using_scooper_simple/_comprehensive_scooper_analysis.
package classifier

import (
	"math"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/geometry"
	"github.com/scoopguard/violation-pipeline/internal/model"
)

// Result is the outcome of classifying one hand against the scoopers
// present in a single frame.
type Result struct {
	UsingScooper           bool
	ClosestScooperDistance float64 // +Inf when no scooper was present
	Tier                   model.DecisionTier
	Confidence             float64
}

// Classifier decides scooper usage for one hand in one frame. A
// Classifier instance is owned by a single session goroutine; rich-mode
// implementations keep per-hand history and are not safe to share
// across sessions.
type Classifier interface {
	Classify(hand model.Detection, scoopers []model.Detection, handKey model.HandIdentity, frameID string, ts time.Time) Result
}

func center(d model.Detection) geometry.Point {
	return geometry.Point{X: d.Center.X, Y: d.Center.Y}
}

func closestScooper(hand model.Detection, scoopers []model.Detection) (model.Detection, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range scoopers {
		d := geometry.Distance(center(hand), center(s))
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		return model.Detection{}, math.Inf(1), false
	}
	return scoopers[best], bestDist, true
}

func coerceConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	return c
}
