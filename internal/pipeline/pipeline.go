package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/scoopguard/violation-pipeline/internal/config"
	"github.com/scoopguard/violation-pipeline/internal/model"
)

// Pipeline owns every active Session, keyed by session id, generalizing
// the teacher's single-Tracker-per-process model into the N-session
// registry spec.md §5 calls for. No state is ever shared between two
// Sessions; Pipeline's own mutex only guards the registry map, never a
// session's internal state.
type Pipeline struct {
	cfg *config.Config
	log *zap.SugaredLogger

	detector  Detector
	roiSource ROISource
	writer    ViolationWriter
	publisher EventPublisher
	persister FramePersister

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New constructs a Pipeline. The detector/roiSource/writer/publisher/
// persister collaborators are shared read-only across every session
// they serve; only session-scoped state (sequence tracker, arbiter,
// worker registry, classifier history) is ever session-local.
func New(cfg *config.Config, log *zap.SugaredLogger, detector Detector, roiSource ROISource, writer ViolationWriter, publisher EventPublisher, persister FramePersister) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		log:       log,
		detector:  detector,
		roiSource: roiSource,
		writer:    writer,
		publisher: publisher,
		persister: persister,
		sessions:  make(map[string]*Session),
	}
}

// sessionFor returns the Session for sessionID, creating and starting
// one if this is the first frame seen for it.
func (p *Pipeline) sessionFor(sessionID string) *Session {
	p.mu.RLock()
	s, ok := p.sessions[sessionID]
	p.mu.RUnlock()
	if ok {
		return s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[sessionID]; ok {
		return s
	}

	s = NewSession(sessionID, &p.cfg.Policy, p.detector, p.roiSource, p.writer, p.publisher, p.persister, p.log)
	_ = s.Start()
	p.sessions[sessionID] = s
	return s
}

// Analyze dispatches one frame to its session, creating the session on
// first use, and returns every violation emitted on this frame.
func (p *Pipeline) Analyze(ctx context.Context, frame AnalyzeFrame) ([]model.ViolationEvent, error) {
	session := p.sessionFor(frame.SessionID)
	return session.ProcessFrame(ctx, frame)
}

// EndSession stops and closes the session, releasing its resources. A
// session that receives no further frames is not closed automatically;
// callers must signal session end explicitly (spec.md §6's session-end
// notification), since the pipeline has no way to infer that a work
// session has actually finished versus merely paused.
func (p *Pipeline) EndSession(sessionID string) error {
	p.mu.Lock()
	s, ok := p.sessions[sessionID]
	if ok {
		delete(p.sessions, sessionID)
	}
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close()
}

// Session returns the live Session for sessionID, if any — used by the
// ingest server to expose per-session stats and subscriptions.
func (p *Pipeline) Session(sessionID string) (*Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[sessionID]
	return s, ok
}

// Stats returns the session's current statistics snapshot. ok is false
// if sessionID names no live session.
func (p *Pipeline) Stats(sessionID string) (Stats, bool) {
	s, ok := p.Session(sessionID)
	if !ok {
		return Stats{}, false
	}
	return s.Stats(), true
}

// Sessions returns the ids of every currently tracked session.
func (p *Pipeline) Sessions() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		out = append(out, id)
	}
	return out
}

// Close stops every session and clears the registry. Intended for
// process shutdown.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
