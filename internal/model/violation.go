package model

import (
	"encoding/json"
	"math"
	"time"
)

// Severity classifies how serious a violation is, driving the
// annotated frame's banner color.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// DecisionTier labels which branch of the scooper-usage policy fired.
type DecisionTier string

const (
	TierStrict           DecisionTier = "tier1_strict"
	TierFallback         DecisionTier = "tier2_fallback"
	TierNoScooper        DecisionTier = "no_scooper_detected"
	TierNearbyNotUsed    DecisionTier = "scooper_nearby_but_not_used"
)

// ActionType classifies a worker's recent hand motion. Telemetry only;
// it never gates a violation decision.
type ActionType string

const (
	ActionCleaning ActionType = "cleaning"
	ActionGrabbing ActionType = "grabbing"
	ActionIdle     ActionType = "idle"
	ActionUnknown  ActionType = "unknown"
)

// Evidence captures the spatial/temporal facts behind a violation
// decision, persisted alongside the annotated frame for observability.
type Evidence struct {
	HandBBox               Rect
	HandCenter             Point
	ROIBounds              Rect
	ClosestScooperDistance float64
	DecisionTier           DecisionTier
}

type evidenceWire struct {
	HandBBox               Rect         `json:"hand_bbox"`
	HandCenter             Point        `json:"hand_center"`
	ROIBounds              Rect         `json:"roi_bounds"`
	ClosestScooperDistance *float64     `json:"closest_scooper_distance"`
	DecisionTier           DecisionTier `json:"decision_tier"`
}

// MarshalJSON encodes ClosestScooperDistance as null when no scooper
// was present anywhere in frame (closestScooper's +Inf no-match
// sentinel, spec.md §8 Scenario 1), since encoding/json has no
// representation for ±Inf/NaN and would otherwise fail the whole
// record.
func (e Evidence) MarshalJSON() ([]byte, error) {
	wire := evidenceWire{
		HandBBox:     e.HandBBox,
		HandCenter:   e.HandCenter,
		ROIBounds:    e.ROIBounds,
		DecisionTier: e.DecisionTier,
	}
	if !math.IsInf(e.ClosestScooperDistance, 0) && !math.IsNaN(e.ClosestScooperDistance) {
		d := e.ClosestScooperDistance
		wire.ClosestScooperDistance = &d
	}
	return json.Marshal(wire)
}

// ViolationEvent is the pipeline's sole externally visible output: one
// record per qualifying ROISequence.
type ViolationEvent struct {
	ViolationID    string
	SequenceKey    SequenceKey
	SequenceID     string
	FrameID        string // entry frame of the sequence
	ROIName        string
	HandIdentity   HandIdentity
	WorkerID       *int
	Type           string
	Severity       Severity
	Confidence     float64
	Description    string
	Evidence       Evidence
	MovementPattern *ActionType
	AnnotatedJPEG  []byte
	CreatedAt      time.Time
}
