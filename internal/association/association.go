// Package association assigns each hand detection to the nearest
// person detection within a proximity threshold, spec.md §4.1. Worker
// ids are 1-based indices over the frame's person detections and carry
// no cross-frame stability guarantee.
package association

import (
	"math"

	"github.com/scoopguard/violation-pipeline/internal/geometry"
	"github.com/scoopguard/violation-pipeline/internal/model"
)

// HandAssociation records which worker (if any) a hand was assigned to
// in one frame.
type HandAssociation struct {
	HandIndex int
	WorkerID  *int // nil when unassigned
	Distance  float64
}

// Associate assigns each hand to the nearest person detection whose
// center is within maxDistance pixels. Persons are indexed 1-based in
// frame order; a hand farther than maxDistance from every person is
// unassigned.
func Associate(hands, persons []model.Detection, maxDistance float64) []HandAssociation {
	out := make([]HandAssociation, len(hands))
	for i, hand := range hands {
		out[i] = HandAssociation{HandIndex: i, Distance: math.Inf(1)}

		best := -1
		bestDist := math.Inf(1)
		for pi, person := range persons {
			d := geometry.Distance(geometry.Point{X: hand.Center.X, Y: hand.Center.Y}, geometry.Point{X: person.Center.X, Y: person.Center.Y})
			if d < bestDist {
				bestDist = d
				best = pi
			}
		}

		if best >= 0 && bestDist <= maxDistance {
			workerID := best + 1
			out[i].WorkerID = &workerID
			out[i].Distance = bestDist
		}
	}
	return out
}
