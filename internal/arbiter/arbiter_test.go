package arbiter

import (
	"testing"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

func key() model.SequenceKey {
	return model.SequenceKey{Hand: "hand-0:unassigned", ROI: "counter"}
}

// P3: compliance-at-entry — a sequence whose entry frame shows scooper
// usage never produces a violation.
func TestEvaluateCompliantAtEntryNeverViolates(t *testing.T) {
	a := New(0, 0)
	d := a.Evaluate(key(), true, false, time.Now(), "v1")
	if d.Violation {
		t.Error("expected no violation for compliant entry")
	}
	if d.Reason != "compliant" {
		t.Errorf("expected reason compliant, got %s", d.Reason)
	}
}

// P1: one violation per sequence — evaluating the same key twice without
// an intervening purge must not double-emit.
func TestEvaluateSameKeyTwiceWithoutPurgeSuppressesSecond(t *testing.T) {
	a := New(0, 0)
	base := time.Now()

	d1 := a.Evaluate(key(), false, false, base, "v1")
	if !d1.Violation {
		t.Fatal("expected first evaluation to emit")
	}

	d2 := a.Evaluate(key(), false, false, base.Add(time.Millisecond), "v2")
	if d2.Violation {
		t.Error("expected second evaluation on the same open sequence to be suppressed")
	}
	if d2.Reason != "already_handled" {
		t.Errorf("expected reason already_handled, got %s", d2.Reason)
	}
}

// P2: cooldown spacing — after a sequence closes (purging the dedup
// entry), a new sequence for the same key within W seconds is still
// suppressed by the cooldown timestamp.
func TestCooldownSuppressesNewSequenceWithinWindow(t *testing.T) {
	a := New(30*time.Second, 0)
	base := time.Now()

	d1 := a.Evaluate(key(), false, false, base, "v1")
	if !d1.Violation {
		t.Fatal("expected first evaluation to emit")
	}
	a.PurgeSequence(key()) // sequence closed

	d2 := a.Evaluate(key(), false, false, base.Add(10*time.Second), "v2")
	if d2.Violation {
		t.Error("expected cooldown to suppress a new sequence within W seconds")
	}
	if d2.Reason != "cooldown" {
		t.Errorf("expected reason cooldown, got %s", d2.Reason)
	}
}

func TestCooldownAllowsNewViolationAfterWindowElapses(t *testing.T) {
	a := New(30*time.Second, 0)
	base := time.Now()

	a.Evaluate(key(), false, false, base, "v1")
	a.PurgeSequence(key())

	d2 := a.Evaluate(key(), false, false, base.Add(31*time.Second), "v2")
	if !d2.Violation {
		t.Error("expected a new violation once the cooldown window has elapsed")
	}
}

func TestPurgeStaleCooldownsDropsOldEntriesOnly(t *testing.T) {
	a := New(30*time.Second, 60*time.Second)
	base := time.Now()

	a.Evaluate(key(), false, false, base, "v1")
	if a.ActiveCooldowns() != 1 {
		t.Fatalf("expected 1 tracked cooldown, got %d", a.ActiveCooldowns())
	}

	a.PurgeStaleCooldowns(base.Add(30 * time.Second))
	if a.ActiveCooldowns() != 1 {
		t.Error("expected cooldown to survive before its TTL elapses")
	}

	a.PurgeStaleCooldowns(base.Add(61 * time.Second))
	if a.ActiveCooldowns() != 0 {
		t.Error("expected cooldown to be purged once its TTL elapses")
	}
}

func TestSeverityTiering(t *testing.T) {
	tier, sev := Severity(false, 500, 50, 100)
	if tier != model.TierNoScooper || sev != model.SeverityHigh {
		t.Errorf("expected no_scooper_detected/high for simple mode, got %s/%s", tier, sev)
	}

	tier, sev = Severity(true, 80, 50, 100)
	if tier != model.TierNearbyNotUsed || sev != model.SeverityMedium {
		t.Errorf("expected scooper_nearby_but_not_used/medium for rich mode within nearby band, got %s/%s", tier, sev)
	}
}

func TestEvaluateDifferentKeysAreIndependent(t *testing.T) {
	a := New(30*time.Second, 0)
	base := time.Now()
	k1 := model.SequenceKey{Hand: "hand-0:unassigned", ROI: "counter"}
	k2 := model.SequenceKey{Hand: "hand-1:unassigned", ROI: "counter"}

	d1 := a.Evaluate(k1, false, false, base, "v1")
	d2 := a.Evaluate(k2, false, false, base, "v2")
	if !d1.Violation || !d2.Violation {
		t.Error("expected independent keys to each emit their own violation")
	}
}
