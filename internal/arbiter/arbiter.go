// Package arbiter decides, once per ROISequence entry, whether a
// violation should be emitted, and deduplicates across sequence churn
// within a cooldown window. Grounded on
// original_source/services/violation_detector/main.py's
// _should_create_sequence_violation/_mark_sequence_as_violation.
package arbiter

import (
	"sync"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

const (
	defaultCooldown     = 30 * time.Second
	defaultCooldownTTL  = 60 * time.Second
)

// Decision is the arbiter's verdict for one sequence-entry evaluation.
type Decision struct {
	Violation bool
	Reason    string // "compliant", "already_handled", "cooldown", "emitted"
}

// Arbiter owns the sequence-violation and cooldown-timestamp registries
// for a single session. Not safe for concurrent use across sessions;
// safe for concurrent Evaluate/Purge calls within one session via an
// internal mutex, matching the teacher's Tracker.mu-guarded state.
type Arbiter struct {
	mu sync.Mutex

	sequenceViolations map[model.SequenceKey]string
	violationTimestamps map[model.SequenceKey]time.Time

	cooldown    time.Duration
	cooldownTTL time.Duration
}

// New constructs an Arbiter. cooldown is the work-session dedup window W
// (default 30s); cooldownTTL bounds how long a cooldown timestamp is
// retained after the session appears to have ended (default 60s).
func New(cooldown, cooldownTTL time.Duration) *Arbiter {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if cooldownTTL <= 0 {
		cooldownTTL = defaultCooldownTTL
	}
	return &Arbiter{
		sequenceViolations:  make(map[model.SequenceKey]string),
		violationTimestamps: make(map[model.SequenceKey]time.Time),
		cooldown:            cooldown,
		cooldownTTL:         cooldownTTL,
	}
}

// Evaluate must be called exactly once, at the frame a sequence opens,
// with that entry frame's classifier result. It never re-evaluates
// later frames of the same sequence — that responsibility belongs to
// the caller (internal/pipeline), which must call this only on a
// sequence.Opened transition.
func (a *Arbiter) Evaluate(key model.SequenceKey, entryUsingScooper bool, richMode bool, now time.Time, violationID string) Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entryUsingScooper {
		return Decision{Violation: false, Reason: "compliant"}
	}

	if _, ok := a.sequenceViolations[key]; ok {
		return Decision{Violation: false, Reason: "already_handled"}
	}

	if last, ok := a.violationTimestamps[key]; ok && now.Sub(last) < a.cooldown {
		return Decision{Violation: false, Reason: "cooldown"}
	}

	a.sequenceViolations[key] = violationID
	a.violationTimestamps[key] = now
	return Decision{Violation: true, Reason: "emitted"}
}

// Severity returns the decision tier/severity pair for a non-compliant
// entry observation, spec.md §4.5.
func Severity(richMode bool, closestScooperDistance float64, activeMaxPx, nearbyMaxPx float64) (model.DecisionTier, model.Severity) {
	if richMode && closestScooperDistance <= nearbyMaxPx {
		return model.TierNearbyNotUsed, model.SeverityMedium
	}
	return model.TierNoScooper, model.SeverityHigh
}

// PurgeSequence drops the sequence-violation dedup entry for key. Called
// when a sequence closes: the per-sequence "already handled" marker no
// longer applies once the sequence itself is gone, but the cooldown
// timestamp survives independently until its own TTL elapses, so a
// brand-new sequence for the same key immediately after closure is
// still subject to the W-second work-session cooldown.
func (a *Arbiter) PurgeSequence(key model.SequenceKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sequenceViolations, key)
}

// PurgeStaleCooldowns drops cooldown timestamps older than the
// configured TTL, as of now. Intended to run alongside the sequence
// tracker's staleness janitor.
func (a *Arbiter) PurgeStaleCooldowns(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, ts := range a.violationTimestamps {
		if now.Sub(ts) > a.cooldownTTL {
			delete(a.violationTimestamps, key)
		}
	}
}

// ActiveCooldowns reports the number of tracked cooldown timestamps,
// used for stats/metrics snapshots.
func (a *Arbiter) ActiveCooldowns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.violationTimestamps)
}
