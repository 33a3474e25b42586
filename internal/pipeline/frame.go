package pipeline

import "time"

// SourceInfo describes the frame source that produced an AnalyzeFrame
// request, spec.md §6.
type SourceInfo struct {
	Type       string `json:"type"`
	Path       string `json:"path"`
	FPS        float64 `json:"fps"`
	Resolution [2]int `json:"resolution"`
}

// AnalyzeFrame is the frame-ingest wire contract, spec.md §6: a push
// from the Frame Source into the pipeline.
type AnalyzeFrame struct {
	FrameID     string
	SessionID   string
	Timestamp   time.Time
	JPEGBytes   []byte // optional in analyze-only mode
	FrameNumber int
	SourceInfo  SourceInfo
}
