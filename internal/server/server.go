// Package server implements the pipeline's minimal HTTP ingest surface,
// spec.md §6: a frame-push endpoint, a session-end notification, and
// the standard health/metrics endpoints. Grounded on
// HM4704-proxima's net/http + promhttp wiring, the one example repo in
// the pack that exposes a Prometheus-scraped HTTP service rather than a
// library API.
package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scoopguard/violation-pipeline/internal/pipeline"
)

// analyzeFrameWire is the JSON body accepted by POST /frames/analyze,
// spec.md §6's frame-ingest envelope.
type analyzeFrameWire struct {
	FrameID     string `json:"frame_id"`
	SessionID   string `json:"session_id"`
	Timestamp   string `json:"timestamp"`
	FrameData   string `json:"frame_data"`
	FrameNumber int    `json:"frame_number"`
	SourceInfo  struct {
		Type       string  `json:"type"`
		Path       string  `json:"path"`
		FPS        float64 `json:"fps"`
		Resolution [2]int  `json:"resolution"`
	} `json:"source_info"`
}

type violationWire struct {
	ViolationID  string `json:"violation_id"`
	SequenceID   string `json:"sequence_id"`
	ROIName      string `json:"roi_zone"`
	HandIdentity string `json:"hand_identity"`
	Type         string `json:"violation_type"`
	Severity     string `json:"severity"`
	Confidence   float64 `json:"confidence"`
	Description  string `json:"description"`
}

type analyzeResponseWire struct {
	FrameID    string          `json:"frame_id"`
	Violations []violationWire `json:"violations"`
}

type statsWire struct {
	ActiveSequences                  int     `json:"active_sequences"`
	CompletedSequences               int     `json:"completed_sequences"`
	ViolationsTotal                  int     `json:"violations_total"`
	SequencesUsingScooperProperlyPct float64 `json:"sequences_using_scooper_properly_pct"`
}

// Server exposes the pipeline over HTTP.
type Server struct {
	mux *http.ServeMux
	pl  *pipeline.Pipeline
	log *zap.SugaredLogger
}

// New constructs a Server wired to pl.
func New(pl *pipeline.Pipeline, log *zap.SugaredLogger) *Server {
	s := &Server{mux: http.NewServeMux(), pl: pl, log: log}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/frames/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/sessions/", s.handleSessionEnd)
	s.mux.HandleFunc("/stats/", s.handleStats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire analyzeFrameWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if wire.SessionID == "" || wire.FrameID == "" {
		http.Error(w, "frame_id and session_id are required", http.StatusBadRequest)
		return
	}

	ts := time.Now().UTC()
	if wire.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, wire.Timestamp); err == nil {
			ts = parsed
		}
	}

	var jpeg []byte
	if wire.FrameData != "" {
		decoded, err := base64.StdEncoding.DecodeString(wire.FrameData)
		if err != nil {
			http.Error(w, "frame_data must be base64-encoded", http.StatusBadRequest)
			return
		}
		jpeg = decoded
	}

	frame := pipeline.AnalyzeFrame{
		FrameID:     wire.FrameID,
		SessionID:   wire.SessionID,
		Timestamp:   ts,
		JPEGBytes:   jpeg,
		FrameNumber: wire.FrameNumber,
		SourceInfo: pipeline.SourceInfo{
			Type:       wire.SourceInfo.Type,
			Path:       wire.SourceInfo.Path,
			FPS:        wire.SourceInfo.FPS,
			Resolution: wire.SourceInfo.Resolution,
		},
	}

	events, err := s.pl.Analyze(r.Context(), frame)
	if err != nil {
		if s.log != nil {
			s.log.Errorw("frame analysis failed", "session_id", wire.SessionID, "frame_id", wire.FrameID, "error", err)
		}
		http.Error(w, "frame analysis failed", http.StatusInternalServerError)
		return
	}

	resp := analyzeResponseWire{FrameID: wire.FrameID, Violations: make([]violationWire, 0, len(events))}
	for _, ev := range events {
		resp.Violations = append(resp.Violations, violationWire{
			ViolationID:  ev.ViolationID,
			SequenceID:   ev.SequenceID,
			ROIName:      ev.ROIName,
			HandIdentity: string(ev.HandIdentity),
			Type:         ev.Type,
			Severity:     string(ev.Severity),
			Confidence:   ev.Confidence,
			Description:  ev.Description,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Path[len("/sessions/"):]
	sessionID = trimSuffixEnd(sessionID)
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	if err := s.pl.EndSession(sessionID); err != nil {
		http.Error(w, "failed to end session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Path[len("/stats/"):]
	if sessionID == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	stats, ok := s.pl.Stats(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsWire{
		ActiveSequences:                  stats.ActiveSequences,
		CompletedSequences:               stats.CompletedSequences,
		ViolationsTotal:                  stats.ViolationsTotal,
		SequencesUsingScooperProperlyPct: stats.SequencesUsingScooperProperlyPct,
	})
}

func trimSuffixEnd(path string) string {
	const suffix = "/end"
	if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return ""
}
