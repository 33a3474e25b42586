package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/config"
	"github.com/scoopguard/violation-pipeline/internal/model"
)

func newTestPipeline() *Pipeline {
	cfg := config.Default()
	detector := &fakeDetector{fn: func(string) []model.Detection { return nil }}
	roiSource := &fakeROISource{rois: []model.ROI{testROI()}, ok: true}
	return New(cfg, nil, detector, roiSource, &fakeWriter{}, &fakePublisher{}, fakePersister{})
}

func TestPipelineCreatesSessionOnFirstFrame(t *testing.T) {
	p := newTestPipeline()
	if _, ok := p.Session("alpha"); ok {
		t.Fatal("expected no session before first frame")
	}

	_, err := p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "alpha", Timestamp: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, ok := p.Session("alpha")
	if !ok {
		t.Fatal("expected session to be created on first frame")
	}
	if s.State() != SessionRunning {
		t.Errorf("expected new session to be running, got %s", s.State())
	}
}

func TestPipelineReusesExistingSession(t *testing.T) {
	p := newTestPipeline()
	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "alpha", Timestamp: time.Unix(0, 0)})
	first, _ := p.Session("alpha")

	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f2", SessionID: "alpha", Timestamp: time.Unix(1, 0)})
	second, _ := p.Session("alpha")

	if first != second {
		t.Error("expected the same session instance to be reused across frames")
	}
}

func TestPipelineSessionsAreIndependent(t *testing.T) {
	p := newTestPipeline()
	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "alpha", Timestamp: time.Unix(0, 0)})
	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "beta", Timestamp: time.Unix(0, 0)})

	if len(p.Sessions()) != 2 {
		t.Fatalf("expected 2 independent sessions, got %d", len(p.Sessions()))
	}
}

func TestPipelineEndSessionRemovesAndClosesSession(t *testing.T) {
	p := newTestPipeline()
	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "alpha", Timestamp: time.Unix(0, 0)})

	s, _ := p.Session("alpha")
	if err := p.EndSession("alpha"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Session("alpha"); ok {
		t.Error("expected session to be removed from the registry")
	}
	if s.State() != SessionClosed {
		t.Errorf("expected session to be closed, got %s", s.State())
	}
}

func TestPipelineEndSessionUnknownIDIsNoop(t *testing.T) {
	p := newTestPipeline()
	if err := p.EndSession("ghost"); err != nil {
		t.Errorf("expected no error ending an unknown session, got %v", err)
	}
}

func TestPipelineCloseStopsAllSessions(t *testing.T) {
	p := newTestPipeline()
	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "alpha", Timestamp: time.Unix(0, 0)})
	_, _ = p.Analyze(context.Background(), AnalyzeFrame{FrameID: "f1", SessionID: "beta", Timestamp: time.Unix(0, 0)})

	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Sessions()) != 0 {
		t.Errorf("expected no sessions left after Close, got %d", len(p.Sessions()))
	}
}
