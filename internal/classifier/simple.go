package classifier

import (
	"time"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

// SimpleConfig holds the tiered-distance thresholds, spec.md §4.4.
type SimpleConfig struct {
	ActiveMaxPx             float64 // default 50
	NearbyMaxPx             float64 // default 100
	AllowNearbyScooperFallback bool
}

// DefaultSimpleConfig returns the default distance thresholds (50 and
// 100 px) with the nearby-scooper fallback disabled; config.Default
// enables that fallback.
func DefaultSimpleConfig() SimpleConfig {
	return SimpleConfig{ActiveMaxPx: 50, NearbyMaxPx: 100, AllowNearbyScooperFallback: false}
}

// Simple implements the tiered-distance classifier. It is stateless and
// safe to share across hands and frames.
type Simple struct {
	cfg SimpleConfig
}

// NewSimple constructs a Simple classifier. Zero-valued distance
// thresholds in cfg fall back to 50 and 100 px;
// AllowNearbyScooperFallback is used as given.
func NewSimple(cfg SimpleConfig) *Simple {
	if cfg.ActiveMaxPx <= 0 {
		cfg.ActiveMaxPx = 50
	}
	if cfg.NearbyMaxPx <= 0 {
		cfg.NearbyMaxPx = 100
	}
	return &Simple{cfg: cfg}
}

func (s *Simple) Classify(hand model.Detection, scoopers []model.Detection, _ model.HandIdentity, _ string, _ time.Time) Result {
	_, dist, ok := closestScooper(hand, scoopers)
	if !ok {
		return Result{UsingScooper: false, ClosestScooperDistance: dist, Tier: model.TierNoScooper}
	}

	switch {
	case dist <= s.cfg.ActiveMaxPx:
		return Result{UsingScooper: true, ClosestScooperDistance: dist, Tier: model.TierStrict, Confidence: 1}
	case dist <= s.cfg.NearbyMaxPx:
		if s.cfg.AllowNearbyScooperFallback {
			return Result{UsingScooper: true, ClosestScooperDistance: dist, Tier: model.TierFallback, Confidence: 0.6}
		}
		return Result{UsingScooper: false, ClosestScooperDistance: dist, Tier: model.TierNearbyNotUsed}
	default:
		return Result{UsingScooper: false, ClosestScooperDistance: dist, Tier: model.TierNoScooper}
	}
}
