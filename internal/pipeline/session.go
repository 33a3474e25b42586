// Package pipeline wires detection, ROI lookup, association, sequence
// tracking, classification, arbitration, annotation, and persistence
// into the per-frame and per-session lifecycle spec.md §5 describes.
// Session generalizes the teacher's Tracker
// (pkg/miface/tracker.go) from one camera's capture/process/send loop
// into one work session's frame-analysis loop: the state machine
// (Idle/Running/Stopped/Closed), the ctx/cancel/wg shutdown drain, and
// the Subscribe()-style fan-out are carried over directly. Frame
// delivery differs from the teacher: frames arrive pushed from an
// ingest handler rather than pulled from a ticker-driven camera, so
// ProcessFrame runs synchronously under the session's mutex instead of
// a dedicated tight loop; the background goroutine here drives only the
// staleness/cooldown janitor, the one piece of session state that must
// advance even between frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoopguard/violation-pipeline/internal/annotate"
	"github.com/scoopguard/violation-pipeline/internal/arbiter"
	"github.com/scoopguard/violation-pipeline/internal/association"
	"github.com/scoopguard/violation-pipeline/internal/classifier"
	"github.com/scoopguard/violation-pipeline/internal/clients"
	"github.com/scoopguard/violation-pipeline/internal/config"
	"github.com/scoopguard/violation-pipeline/internal/geometry"
	"github.com/scoopguard/violation-pipeline/internal/ids"
	"github.com/scoopguard/violation-pipeline/internal/metrics"
	"github.com/scoopguard/violation-pipeline/internal/model"
	"github.com/scoopguard/violation-pipeline/internal/sequence"
	"github.com/scoopguard/violation-pipeline/internal/worker"
)

// Errors mirroring the teacher's Tracker lifecycle error set.
var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrSessionRunning = errors.New("session is already running")
	ErrSessionStopped = errors.New("session is not running")
)

// SessionState mirrors the teacher's TrackerState.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionRunning
	SessionStopped
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionRunning:
		return "running"
	case SessionStopped:
		return "stopped"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const janitorInterval = 5 * time.Second

// Detector is the seam ProcessFrame uses to fetch hand/person/scooper
// detections for a frame. Satisfied by *clients.DetectorClient.
type Detector interface {
	Detect(ctx context.Context, frameID string, jpegBytes []byte, ts time.Time) []model.Detection
}

// ROISource is the seam ProcessFrame uses to fetch the current ROI
// snapshot. Satisfied by *clients.ROIStoreClient.
type ROISource interface {
	Fetch(ctx context.Context, now time.Time) ([]model.ROI, bool)
}

// ViolationWriter persists a violation record to the Violation Store.
// Satisfied by *clients.ViolationStoreClient.
type ViolationWriter interface {
	Write(ctx context.Context, rec *clients.ViolationRecord) error
}

// EventPublisher best-effort publishes a violation event to the message
// broker. Satisfied by *clients.BrokerPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, violationID, sessionID, roiName, severity string)
}

// FramePersister draws and stores the annotated evidence frame.
// Satisfied by *annotate.Persister.
type FramePersister interface {
	Persist(sessionID string, entryJPEG []byte, ev model.ViolationEvent, roi model.ROI) (annotate.Outcome, error)
}

// Session owns one work session's sequence tracker, arbiter, worker
// registry, and classifier. Per spec.md §5, a session's mutable state
// is never shared across sessions; ProcessFrame serializes access with
// an internal mutex so concurrent ingest calls for the same session
// never race.
type Session struct {
	ID  string
	cfg *config.PolicyConfig

	detector   Detector
	roiSource  ROISource
	writer     ViolationWriter
	publisher  EventPublisher
	persister  FramePersister
	log        *zap.SugaredLogger

	processMu       sync.Mutex
	classifier      classifier.Classifier
	seqTracker      *sequence.Tracker
	arb             *arbiter.Arbiter
	workers         *worker.Registry
	violationsTotal int

	lifecycleMu sync.RWMutex
	state       SessionState
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	subMu       sync.Mutex
	subscribers []chan model.ViolationEvent
}

// NewSession constructs a Session with its own sequence tracker,
// arbiter, worker registry, and classifier instance, selecting the
// rich-evidence classifier when cfg.RichModeEnabled is set.
func NewSession(id string, cfg *config.PolicyConfig, detector Detector, roiSource ROISource, writer ViolationWriter, publisher EventPublisher, persister FramePersister, log *zap.SugaredLogger) *Session {
	var cls classifier.Classifier
	if cfg.RichModeEnabled {
		cls = classifier.NewRich(classifier.RichConfig{EnableROIDepthFactor: cfg.EnableROIDepthFactor})
	} else {
		cls = classifier.NewSimple(classifier.SimpleConfig{
			ActiveMaxPx:                cfg.ScooperActiveMaxPx,
			NearbyMaxPx:                cfg.ScooperNearbyMaxPx,
			AllowNearbyScooperFallback: cfg.AllowNearbyScooperFallback,
		})
	}

	return &Session{
		ID:         id,
		cfg:        cfg,
		detector:   detector,
		roiSource:  roiSource,
		writer:     writer,
		publisher:  publisher,
		persister:  persister,
		log:        log,
		classifier: cls,
		seqTracker: sequence.New(ids.NewSequenceID, 0, time.Duration(cfg.SequenceStalenessSec)*time.Second),
		arb:        arbiter.New(time.Duration(cfg.WorkSessionCooldownSec)*time.Second, 2*time.Duration(cfg.WorkSessionCooldownSec)*time.Second),
		workers:    worker.NewRegistry(),
		state:      SessionIdle,
	}
}

// Start launches the session's background janitor goroutine.
func (s *Session) Start() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	switch s.state {
	case SessionRunning:
		return ErrSessionRunning
	case SessionClosed:
		return ErrSessionClosed
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state = SessionRunning

	s.wg.Add(1)
	go s.janitorLoop()
	return nil
}

// Stop halts the janitor goroutine; ProcessFrame may still be called
// afterward (matching the teacher's Stop semantics, which leave
// resources open for a subsequent Start).
func (s *Session) Stop() error {
	s.lifecycleMu.Lock()
	if s.state != SessionRunning {
		s.lifecycleMu.Unlock()
		return ErrSessionStopped
	}
	s.cancel()
	s.state = SessionStopped
	s.lifecycleMu.Unlock()

	s.wg.Wait()
	return nil
}

// Close stops the session permanently and closes every subscriber
// channel.
func (s *Session) Close() error {
	s.lifecycleMu.Lock()
	if s.state == SessionClosed {
		s.lifecycleMu.Unlock()
		return ErrSessionClosed
	}
	if s.state == SessionRunning {
		s.cancel()
	}
	s.state = SessionClosed
	s.lifecycleMu.Unlock()

	s.wg.Wait()

	s.subMu.Lock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.subMu.Unlock()

	return nil
}

// State reports the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.lifecycleMu.RLock()
	defer s.lifecycleMu.RUnlock()
	return s.state
}

// Subscribe returns a channel that receives every violation event this
// session emits. The caller must drain it; events that arrive while a
// subscriber's 16-slot buffer is full are dropped for that subscriber
// rather than blocking the pipeline.
func (s *Session) Subscribe() <-chan model.ViolationEvent {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan model.ViolationEvent, 16)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Session) broadcast(ev model.ViolationEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) janitorLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runJanitor(time.Now())
		}
	}
}

func (s *Session) runJanitor(now time.Time) {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	closed := s.seqTracker.ForceCloseStale(now)
	for _, seq := range closed {
		s.arb.PurgeSequence(seq.Key)
	}
	s.arb.PurgeStaleCooldowns(now)
	s.workers.PruneInactive(now)
	metrics.SequencesActive.WithLabelValues(s.ID).Set(float64(s.seqTracker.ActiveCount()))
}

// ProcessFrame runs the full per-frame pipeline described in spec.md
// §4 and returns every violation emitted on this frame (at most one
// per (hand, ROI) entry, so a hand entering several overlapping ROIs
// on one frame can yield one per ROI). The
// detector and ROI-store lookups run concurrently and are joined
// before any session state is touched; everything past that point is
// serialized by processMu so concurrent callers for the same session
// never interleave sequence-tracker or arbiter mutations.
func (s *Session) ProcessFrame(ctx context.Context, frame AnalyzeFrame) ([]model.ViolationEvent, error) {
	var (
		detections []model.Detection
		rois       []model.ROI
		roisOK     bool
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		detections = s.detector.Detect(ctx, frame.FrameID, frame.JPEGBytes, frame.Timestamp)
	}()
	go func() {
		defer wg.Done()
		rois, roisOK = s.roiSource.Fetch(ctx, frame.Timestamp)
	}()
	wg.Wait()

	metrics.FramesProcessedTotal.WithLabelValues(s.ID).Inc()

	if !roisOK {
		if s.log != nil {
			s.log.Warnw("no roi snapshot available, skipping frame", "session_id", s.ID, "frame_id", frame.FrameID)
		}
		return nil, nil
	}

	var hands, persons, scoopers []model.Detection
	for _, d := range detections {
		switch d.Class {
		case model.ClassHand:
			hands = append(hands, d)
		case model.ClassPerson:
			persons = append(persons, d)
		case model.ClassScooper:
			scoopers = append(scoopers, d)
		}
	}

	assoc := association.Associate(hands, persons, s.cfg.HandWorkerAssocMaxPx)

	s.processMu.Lock()
	defer s.processMu.Unlock()

	var events []model.ViolationEvent
	for i, hand := range hands {
		handKey := model.NewHandIdentity(i, assoc[i].WorkerID)
		handCenter := model.Point{X: hand.Center.X, Y: hand.Center.Y}

		result := s.classifier.Classify(hand, scoopers, handKey, frame.FrameID, frame.Timestamp)

		if assoc[i].WorkerID != nil {
			s.workers.Get(*assoc[i].WorkerID).Observe(hand, handCenter, frame.Timestamp)
		}

		for _, roi := range rois {
			inside := geometry.ContainsCenter(roi, handCenter)
			key := model.SequenceKey{Hand: handKey, ROI: roi.Name}
			obs := model.FrameObservation{
				FrameID:                frame.FrameID,
				Timestamp:              frame.Timestamp,
				Position:               handCenter,
				UsingScooper:           result.UsingScooper,
				ClosestScooperDistance: result.ClosestScooperDistance,
			}

			res := s.seqTracker.Observe(key, assoc[i].WorkerID, inside, obs)

			switch res.Transition {
			case sequence.Opened:
				if ev, ok := s.evaluateEntry(ctx, key, res.Sequence, hand, roi, result, assoc[i].WorkerID, frame); ok {
					events = append(events, ev)
				}
			case sequence.Closed:
				s.arb.PurgeSequence(key)
			}
		}
	}

	metrics.SequencesActive.WithLabelValues(s.ID).Set(float64(s.seqTracker.ActiveCount()))
	return events, nil
}

func (s *Session) evaluateEntry(ctx context.Context, key model.SequenceKey, seq *model.ROISequence, hand model.Detection, roi model.ROI, result classifier.Result, workerID *int, frame AnalyzeFrame) (model.ViolationEvent, bool) {
	violationID := ids.NewViolationID()
	decision := s.arb.Evaluate(key, result.UsingScooper, s.isRichMode(), frame.Timestamp, violationID)
	if !decision.Violation {
		return model.ViolationEvent{}, false
	}

	tier, severity := arbiter.Severity(s.isRichMode(), result.ClosestScooperDistance, s.cfg.ScooperActiveMaxPx, s.cfg.ScooperNearbyMaxPx)

	ev := model.ViolationEvent{
		ViolationID:  violationID,
		SequenceKey:  key,
		SequenceID:   seq.SequenceID,
		FrameID:      frame.FrameID,
		ROIName:      roi.Name,
		HandIdentity: key.Hand,
		WorkerID:     workerID,
		Type:         string(tier),
		Severity:     severity,
		Confidence:   result.Confidence,
		Description:  describeViolation(tier, roi),
		Evidence: model.Evidence{
			HandBBox:               hand.BBox,
			HandCenter:             hand.Center,
			ROIBounds:              roi.Rect,
			ClosestScooperDistance: result.ClosestScooperDistance,
			DecisionTier:           tier,
		},
		CreatedAt: frame.Timestamp,
	}

	if workerID != nil {
		pattern := s.workers.Get(*workerID).MovementPattern()
		ev.MovementPattern = &pattern
	}

	s.finalizeViolation(ctx, ev, roi, frame)

	s.violationsTotal++
	metrics.ViolationsTotal.WithLabelValues(string(severity), string(tier)).Inc()
	s.broadcast(ev)
	return ev, true
}

// Stats is a snapshot of a session's current standing, spec.md §9's
// supplemented statistics feature.
type Stats struct {
	ActiveSequences                  int
	CompletedSequences               int
	ViolationsTotal                  int
	SequencesUsingScooperProperlyPct float64
}

// Stats reports the session's current sequence/violation counts and the
// share of completed sequences that used a scooper at or above
// cfg.ScooperUsageRequiredPercent. SequencesUsingScooperProperlyPct is 0
// when no sequence has completed yet.
func (s *Session) Stats() Stats {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	completed := s.seqTracker.Completed()
	proper := 0
	for _, seq := range completed {
		if seq.UsedProperly(s.cfg.ScooperUsageRequiredPercent) {
			proper++
		}
	}

	var pct float64
	if len(completed) > 0 {
		pct = float64(proper) / float64(len(completed)) * 100
	}

	return Stats{
		ActiveSequences:                  s.seqTracker.ActiveCount(),
		CompletedSequences:               len(completed),
		ViolationsTotal:                  s.violationsTotal,
		SequencesUsingScooperProperlyPct: pct,
	}
}

func (s *Session) isRichMode() bool {
	_, ok := s.classifier.(*classifier.Rich)
	return ok
}

func describeViolation(tier model.DecisionTier, roi model.ROI) string {
	switch tier {
	case model.TierNearbyNotUsed:
		return fmt.Sprintf("hand entered %s with a scooper nearby but not actively used", roi.Name)
	default:
		return fmt.Sprintf("hand entered %s without a scooper", roi.Name)
	}
}

// finalizeViolation annotates, persists, publishes, and writes a newly
// emitted violation. Failures here are logged, not returned: the
// arbiter's dedup decision has already been made and must not be
// undone by a downstream I/O failure (spec.md §7). This includes
// clients.ErrSessionHalted from the writer: it is logged like any
// other write error and the session keeps processing frames.
func (s *Session) finalizeViolation(ctx context.Context, ev model.ViolationEvent, roi model.ROI, frame AnalyzeFrame) {
	var framePath string
	inlineJPEG := frame.JPEGBytes

	if s.persister != nil && len(frame.JPEGBytes) > 0 {
		outcome, err := s.persister.Persist(s.ID, frame.JPEGBytes, ev, roi)
		if err != nil {
			if s.log != nil {
				s.log.Warnw("failed to persist violation frame", "violation_id", ev.ViolationID, "error", err)
			}
		} else {
			framePath = outcome.FilePath
			inlineJPEG = outcome.InlineJPEG
		}
	}

	if s.writer != nil {
		rec := toViolationRecord(s.ID, framePath, inlineJPEG, ev, frame)
		if err := s.writer.Write(ctx, rec); err != nil {
			if s.log != nil {
				s.log.Errorw("failed to write violation record", "violation_id", ev.ViolationID, "error", err)
			}
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, ev.ViolationID, s.ID, ev.ROIName, string(ev.Severity))
	}
}

func toViolationRecord(sessionID, framePath string, inlineJPEG []byte, ev model.ViolationEvent, frame AnalyzeFrame) *clients.ViolationRecord {
	rec := &clients.ViolationRecord{
		SessionID:      sessionID,
		WorkerID:       ev.WorkerID,
		ROIZoneID:      ev.ROIName,
		FrameNumber:    frame.FrameNumber,
		FramePath:      framePath,
		ViolationType:  ev.Type,
		Confidence:     ev.Confidence,
		Severity:       string(ev.Severity),
		Description:    ev.Description,
		ScooperPresent: ev.Evidence.ClosestScooperDistance < positiveInfinity,
		BoundingBoxes: map[string]any{
			"hand": ev.Evidence.HandBBox,
			"roi":  ev.Evidence.ROIBounds,
		},
		HandPosition: map[string]any{
			"x": ev.Evidence.HandCenter.X,
			"y": ev.Evidence.HandCenter.Y,
		},
	}
	if ev.Evidence.ClosestScooperDistance < positiveInfinity {
		d := ev.Evidence.ClosestScooperDistance
		rec.ScooperDistance = &d
	}
	if ev.MovementPattern != nil {
		rec.MovementPattern = string(*ev.MovementPattern)
	}
	if len(inlineJPEG) > 0 {
		rec.FrameBase64 = encodeBase64(inlineJPEG)
	}
	return rec
}
