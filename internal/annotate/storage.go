package annotate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

// Storage is the persistence seam spec.md §9 calls for: the annotator
// accepts a storage adapter rather than hard-coding paths, so the
// normative file layout stays swappable behind a stable interface.
type Storage interface {
	WriteFile(sessionID, frameID string, ts time.Time, jpegBytes []byte) (path string, err error)
	WriteRecord(path string, record any) error
}

// FileStorage persists violation frames to the local filesystem using
// the layout normative in spec.md §6:
//
//	violation_frames/<session_id>/violation_<frame_id>_<yyyymmdd_hhmmss_mmm>.jpg
//	violation_frames/<session_id>/violation_<frame_id>_<yyyymmdd_hhmmss_mmm>.jpg.json
type FileStorage struct {
	BaseDir string
}

// NewFileStorage constructs a FileStorage rooted at baseDir (default
// "violation_frames" if empty).
func NewFileStorage(baseDir string) *FileStorage {
	if baseDir == "" {
		baseDir = "violation_frames"
	}
	return &FileStorage{BaseDir: baseDir}
}

func (s *FileStorage) WriteFile(sessionID, frameID string, ts time.Time, jpegBytes []byte) (string, error) {
	dir := filepath.Join(s.BaseDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}

	stamp := ts.UTC().Format("20060102_150405") + fmt.Sprintf("_%03d", ts.UTC().Nanosecond()/int(time.Millisecond))
	name := fmt.Sprintf("violation_%s_%s.jpg", frameID, stamp)
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, jpegBytes, 0o644); err != nil {
		return "", fmt.Errorf("write violation frame: %w", err)
	}
	return path, nil
}

func (s *FileStorage) WriteRecord(path string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evidence record: %w", err)
	}
	if err := os.WriteFile(path+".json", data, 0o644); err != nil {
		return fmt.Errorf("write evidence sidecar: %w", err)
	}
	return nil
}

// PersistedViolation is the evidence record written to the .jpg.json
// sidecar, spec.md §4.6.
type PersistedViolation struct {
	ViolationID  string           `json:"violation_id"`
	SessionID    string           `json:"session_id"`
	SequenceID   string           `json:"sequence_id"`
	FrameID      string           `json:"frame_id"`
	ROIName      string           `json:"roi_zone"`
	HandIdentity string           `json:"hand_identity"`
	WorkerID     *int             `json:"worker_id,omitempty"`
	Type         string           `json:"violation_type"`
	Severity     model.Severity   `json:"severity"`
	Confidence   float64          `json:"confidence"`
	Description  string           `json:"description"`
	Evidence     model.Evidence   `json:"evidence"`
	FilePath     string           `json:"frame_path"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ToRecord builds the sidecar record for ev.
func ToRecord(sessionID, filePath string, ev model.ViolationEvent) PersistedViolation {
	return PersistedViolation{
		ViolationID:  ev.ViolationID,
		SessionID:    sessionID,
		SequenceID:   ev.SequenceID,
		FrameID:      ev.FrameID,
		ROIName:      ev.ROIName,
		HandIdentity: string(ev.HandIdentity),
		WorkerID:     ev.WorkerID,
		Type:         ev.Type,
		Severity:     ev.Severity,
		Confidence:   ev.Confidence,
		Description:  ev.Description,
		Evidence:     ev.Evidence,
		FilePath:     filePath,
		CreatedAt:    ev.CreatedAt,
	}
}
