package classifier

import (
	"math"
	"time"

	"github.com/gammazero/deque"
	"gonum.org/v1/gonum/stat"

	"github.com/scoopguard/violation-pipeline/internal/geometry"
	"github.com/scoopguard/violation-pipeline/internal/model"
)

// RichConfig tunes the rich-evidence classifier's thresholds and weights,
// spec.md §4.4. Zero-valued fields fall back to the spec defaults.
type RichConfig struct {
	ProximityGatePx      float64 // default 40
	DirectionalRewardPx  float64 // default 60
	TemporalProximityPx  float64 // default 60
	MovementReIDMaxPx    float64 // default 100
	MovementHistoryLimit int     // default 5
	TemporalHistoryLimit int     // default 10
	DecisionThreshold    float64 // default 0.6

	// EnableROIDepthFactor folds original_source's hand-touching-food
	// depth heuristic into the spatial score as an extra optional term.
	// Disabled by default; see DESIGN.md's Open Question decisions.
	EnableROIDepthFactor bool
}

// DefaultRichConfig returns the spec's default thresholds and weights.
func DefaultRichConfig() RichConfig {
	return RichConfig{
		ProximityGatePx:      40,
		DirectionalRewardPx:  60,
		TemporalProximityPx:  60,
		MovementReIDMaxPx:    100,
		MovementHistoryLimit: 5,
		TemporalHistoryLimit: 10,
		DecisionThreshold:    0.6,
	}
}

type frameRecord struct {
	frameID       string
	timestamp     time.Time
	handCenter    geometry.Point
	scooperCenter geometry.Point
	distance      float64
	hasScooper    bool
}

type trajectorySmoothers struct {
	hand    *geometry.TrajectorySmoother
	scooper *geometry.TrajectorySmoother
}

const movementSmoothingFactor = 0.5

// Rich implements the rich-evidence classifier. It keeps a bounded
// per-hand history of recent frames (the hand's closest scooper each
// frame, not a per-scooper-identity history — original_source has no
// stable scooper id either) to derive the movement-sync and
// temporal-consistency sub-scores. A Rich instance must be owned by a
// single session goroutine.
type Rich struct {
	cfg       RichConfig
	history   map[model.HandIdentity]*deque.Deque[frameRecord]
	smoothers map[model.HandIdentity]*trajectorySmoothers
}

// NewRich constructs a Rich classifier.
func NewRich(cfg RichConfig) *Rich {
	if cfg.ProximityGatePx <= 0 {
		cfg.ProximityGatePx = 40
	}
	if cfg.DirectionalRewardPx <= 0 {
		cfg.DirectionalRewardPx = 60
	}
	if cfg.TemporalProximityPx <= 0 {
		cfg.TemporalProximityPx = 60
	}
	if cfg.MovementReIDMaxPx <= 0 {
		cfg.MovementReIDMaxPx = 100
	}
	if cfg.MovementHistoryLimit <= 0 {
		cfg.MovementHistoryLimit = 5
	}
	if cfg.TemporalHistoryLimit <= 0 {
		cfg.TemporalHistoryLimit = 10
	}
	if cfg.DecisionThreshold <= 0 {
		cfg.DecisionThreshold = 0.6
	}
	return &Rich{
		cfg:       cfg,
		history:   make(map[model.HandIdentity]*deque.Deque[frameRecord]),
		smoothers: make(map[model.HandIdentity]*trajectorySmoothers),
	}
}

func (r *Rich) Classify(hand model.Detection, scoopers []model.Detection, handKey model.HandIdentity, frameID string, ts time.Time) Result {
	best, dist, found := closestScooper(hand, scoopers)

	hist := r.historyFor(handKey)
	defer r.record(hist, handKey, hand, best, dist, found, frameID, ts)

	if !found || dist > r.cfg.ProximityGatePx {
		return Result{UsingScooper: false, ClosestScooperDistance: dist, Tier: model.TierNoScooper}
	}

	spatial := r.spatialScore(hand, best, dist)
	movement := r.movementSyncScore(hist)
	temporal := r.temporalConsistencyScore(hist)

	confidence := spatial*0.4 + movement*0.4 + temporal*0.2
	confidence = coerceConfidence(confidence)

	tier := model.TierNearbyNotUsed
	using := confidence >= r.cfg.DecisionThreshold
	if using {
		tier = model.TierStrict
	}

	return Result{UsingScooper: using, ClosestScooperDistance: dist, Tier: tier, Confidence: confidence}
}

func (r *Rich) historyFor(key model.HandIdentity) *deque.Deque[frameRecord] {
	d, ok := r.history[key]
	if !ok {
		d = new(deque.Deque[frameRecord])
		r.history[key] = d
	}
	return d
}

func (r *Rich) smoothersFor(key model.HandIdentity) *trajectorySmoothers {
	s, ok := r.smoothers[key]
	if !ok {
		s = &trajectorySmoothers{
			hand:    geometry.NewTrajectorySmoother(movementSmoothingFactor),
			scooper: geometry.NewTrajectorySmoother(movementSmoothingFactor),
		}
		r.smoothers[key] = s
	}
	return s
}

// record stores one frame's hand/scooper centers into the hand's
// history, smoothing both with a per-hand TrajectorySmoother first so
// movementSyncScore's direction/magnitude comparison is not dominated
// by single-frame detector jitter. The proximity-gate distance used in
// Classify is computed from the raw, unsmoothed detections above.
func (r *Rich) record(hist *deque.Deque[frameRecord], handKey model.HandIdentity, hand, scooper model.Detection, dist float64, hasScooper bool, frameID string, ts time.Time) {
	sm := r.smoothersFor(handKey)
	rec := frameRecord{
		frameID:    frameID,
		timestamp:  ts,
		handCenter: sm.hand.Update(center(hand)),
		distance:   dist,
		hasScooper: hasScooper,
	}
	if hasScooper {
		rec.scooperCenter = sm.scooper.Update(center(scooper))
	}
	hist.PushBack(rec)
	for hist.Len() > r.cfg.TemporalHistoryLimit {
		hist.PopFront()
	}
}

func (r *Rich) spatialScore(hand, scooper model.Detection, dist float64) float64 {
	handRect := geometry.Rect{X: hand.BBox.X, Y: hand.BBox.Y, W: hand.BBox.W, H: hand.BBox.H}
	scooperRect := geometry.Rect{X: scooper.BBox.X, Y: scooper.BBox.Y, W: scooper.BBox.W, H: scooper.BBox.H}

	iou := geometry.IoU(handRect, scooperRect)
	directional := r.directionalAlignment(center(hand), center(scooper), dist)
	sizeRatio := sizeRatioScore(hand.Area, scooper.Area)

	score := 0.5*iou + 0.3*directional + 0.2*sizeRatio
	if r.cfg.EnableROIDepthFactor {
		// original_source's _calculate_roi_depth_factor rewards a
		// scooper that sits slightly "behind" the hand along the
		// center-to-center vector, approximated here by blending the
		// score 80/20 with the directional-alignment term again.
		score = 0.8*score + 0.2*directional
	}
	return math.Min(1, score)
}

// directionalAlignment rewards a scooper lying along a cardinal-ish
// extension of the hand (near 0/90/180/270 degrees from it), with a
// bonus when the objects are already close together.
func (r *Rich) directionalAlignment(hand, scooper geometry.Point, dist float64) float64 {
	dx, dy := scooper.X-hand.X, scooper.Y-hand.Y
	if dx == 0 && dy == 0 {
		return 1
	}
	angle := math.Atan2(dy, dx)
	mod := math.Mod(angle, math.Pi/2)
	if mod < 0 {
		mod += math.Pi / 2
	}
	diff := math.Min(mod, math.Pi/2-mod)
	cardinal := 1 - diff/(math.Pi/4)

	if dist <= r.cfg.DirectionalRewardPx {
		cardinal = math.Min(1, cardinal+0.2)
	}
	return cardinal
}

func sizeRatioScore(handArea, scooperArea float64) float64 {
	if handArea <= 0 {
		return 0
	}
	ratio := scooperArea / handArea
	switch {
	case ratio >= 0.2 && ratio <= 0.8:
		return 1.0
	case ratio >= 0.1 && ratio <= 1.2:
		return 0.7
	case ratio >= 0.05 && ratio <= 2.0:
		return 0.4
	default:
		return 0
	}
}

func (r *Rich) movementSyncScore(hist *deque.Deque[frameRecord]) float64 {
	n := hist.Len()
	if n < 2 {
		return 0.5
	}
	start := 0
	if n > r.cfg.MovementHistoryLimit {
		start = n - r.cfg.MovementHistoryLimit
	}

	var sum float64
	var count int
	for i := start + 1; i < n; i++ {
		prev := hist.At(i - 1)
		cur := hist.At(i)
		if !prev.hasScooper || !cur.hasScooper {
			continue
		}
		if geometry.Distance(prev.scooperCenter, cur.scooperCenter) > r.cfg.MovementReIDMaxPx {
			continue
		}

		handVec := geometry.Point{X: cur.handCenter.X - prev.handCenter.X, Y: cur.handCenter.Y - prev.handCenter.Y}
		scooperVec := geometry.Point{X: cur.scooperCenter.X - prev.scooperCenter.X, Y: cur.scooperCenter.Y - prev.scooperCenter.Y}

		cos := cosineSimilarity(handVec, scooperVec)
		cos01 := (cos + 1) / 2

		handMag := math.Hypot(handVec.X, handVec.Y)
		scooperMag := math.Hypot(scooperVec.X, scooperVec.Y)
		magRatio := magnitudeSimilarity(handMag, scooperMag)

		sum += 0.7*cos01 + 0.3*magRatio
		count++
	}

	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

func cosineSimilarity(a, b geometry.Point) float64 {
	dot := a.X*b.X + a.Y*b.Y
	magA := math.Hypot(a.X, a.Y)
	magB := math.Hypot(b.X, b.Y)
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (magA * magB)
}

func magnitudeSimilarity(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1
	}
	hi := math.Max(a, b)
	if hi == 0 {
		return 1
	}
	return math.Min(a, b) / hi
}

func (r *Rich) temporalConsistencyScore(hist *deque.Deque[frameRecord]) float64 {
	n := hist.Len()
	start := 0
	if n > r.cfg.TemporalHistoryLimit {
		start = n - r.cfg.TemporalHistoryLimit
	}

	var scores []float64
	for i := start; i < n; i++ {
		rec := hist.At(i)
		if !rec.hasScooper {
			continue
		}
		scores = append(scores, math.Max(0, 1-rec.distance/r.cfg.TemporalProximityPx))
	}

	if len(scores) == 0 {
		return 0.5
	}
	if len(scores) == 1 {
		return 0.7*scores[0] + 0.3*1
	}

	mean, variance := stat.MeanVariance(scores, nil)
	return 0.7*mean + 0.3*(1-variance)
}
