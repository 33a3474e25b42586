package annotate

import (
	"encoding/json"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

func syntheticJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(0, 0, w, h), color.RGBA{B: 120, A: 255}, -1)
	data, err := EncodeFileCopy(img)
	if err != nil {
		t.Fatalf("failed to build synthetic jpeg fixture: %v", err)
	}
	return data
}

func sampleViolation() model.ViolationEvent {
	return model.ViolationEvent{
		ViolationID: "v1",
		SequenceID:  "seq1",
		FrameID:     "frame_1",
		ROIName:     "counter",
		Type:        "no_scooper_detected",
		Severity:    model.SeverityHigh,
		Confidence:  0.91,
		Description: "bare hand in counter without scooper",
		Evidence: model.Evidence{
			HandBBox:               model.Rect{X: 20, Y: 20, W: 40, H: 40},
			ClosestScooperDistance: 999,
			DecisionTier:           model.TierNoScooper,
		},
		CreatedAt: time.Now(),
	}
}

func sampleROI() model.ROI {
	return model.ROI{Name: "counter", Shape: model.ShapeRectangle, Rect: model.Rect{X: 10, Y: 10, W: 100, H: 100}, RequiresScooper: true}
}

func TestAnnotateDrawsWithoutError(t *testing.T) {
	jpg := syntheticJPEG(t, 320, 240)
	a := NewAnnotator()
	img, err := a.Annotate(jpg, sampleViolation(), sampleROI(), "2026-08-01T00:00:00Z")
	if err != nil {
		t.Fatalf("Annotate returned error: %v", err)
	}
	defer img.Close()
	if img.Empty() {
		t.Error("expected a non-empty annotated image")
	}
}

func TestAnnotatePolygonROI(t *testing.T) {
	jpg := syntheticJPEG(t, 320, 240)
	a := NewAnnotator()
	roi := model.ROI{Name: "board", Shape: model.ShapePolygon, Points: []model.Point{{X: 10, Y: 10}, {X: 50, Y: 10}, {X: 30, Y: 50}}}
	img, err := a.Annotate(jpg, sampleViolation(), roi, "ts")
	if err != nil {
		t.Fatalf("Annotate returned error for polygon ROI: %v", err)
	}
	defer img.Close()
}

func TestEncodeInlineCopyResizesLargeImage(t *testing.T) {
	img := gocv.NewMatWithSize(1200, 1600, gocv.MatTypeCV8UC3)
	defer img.Close()

	data, err := EncodeInlineCopy(img)
	if err != nil {
		t.Fatalf("EncodeInlineCopy returned error: %v", err)
	}

	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("failed to decode inline copy: %v", err)
	}
	defer decoded.Close()

	if decoded.Cols() > inlineMaxWidth || decoded.Rows() > inlineMaxHeight {
		t.Errorf("expected inline copy within %dx%d, got %dx%d", inlineMaxWidth, inlineMaxHeight, decoded.Cols(), decoded.Rows())
	}
}

func TestEncodeInlineCopyLeavesSmallImageUnscaled(t *testing.T) {
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	data, err := EncodeInlineCopy(img)
	if err != nil {
		t.Fatalf("EncodeInlineCopy returned error: %v", err)
	}
	decoded, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	defer decoded.Close()
	if decoded.Cols() != 100 || decoded.Rows() != 100 {
		t.Errorf("expected small image left unscaled, got %dx%d", decoded.Cols(), decoded.Rows())
	}
}

func TestPersisterWritesFileAndSidecar(t *testing.T) {
	dir := t.TempDir()
	storage := NewFileStorage(dir)
	persister := NewPersister(storage)

	jpg := syntheticJPEG(t, 320, 240)
	ev := sampleViolation()
	out, err := persister.Persist("session-1", jpg, ev, sampleROI())
	if err != nil {
		t.Fatalf("Persist returned error: %v", err)
	}
	if len(out.InlineJPEG) == 0 {
		t.Error("expected a non-empty inline jpeg")
	}

	if _, err := os.Stat(out.FilePath); err != nil {
		t.Errorf("expected persisted file to exist: %v", err)
	}
	if _, err := os.Stat(out.FilePath + ".json"); err != nil {
		t.Errorf("expected evidence sidecar to exist: %v", err)
	}

	expectedDir := filepath.Join(dir, "session-1")
	if filepath.Dir(out.FilePath) != expectedDir {
		t.Errorf("expected file under %s, got %s", expectedDir, out.FilePath)
	}
}

// TestPersisterWritesSidecarWithNoScooperInFrame covers the single most
// common violation case — a bare hand with no scooper anywhere in
// frame — where Evidence.ClosestScooperDistance is +Inf (the
// classifier's closestScooper no-match sentinel). encoding/json cannot
// marshal ±Inf directly, so this guards against a regression that
// silently drops the evidence sidecar for that case.
func TestPersisterWritesSidecarWithNoScooperInFrame(t *testing.T) {
	dir := t.TempDir()
	storage := NewFileStorage(dir)
	persister := NewPersister(storage)

	jpg := syntheticJPEG(t, 320, 240)
	ev := sampleViolation()
	ev.Evidence.ClosestScooperDistance = math.Inf(1)

	out, err := persister.Persist("session-1", jpg, ev, sampleROI())
	if err != nil {
		t.Fatalf("Persist returned error with no scooper in frame: %v", err)
	}

	sidecar, err := os.ReadFile(out.FilePath + ".json")
	if err != nil {
		t.Fatalf("expected evidence sidecar to exist: %v", err)
	}

	var decoded struct {
		Evidence struct {
			ClosestScooperDistance *float64 `json:"closest_scooper_distance"`
		} `json:"evidence"`
	}
	if err := json.Unmarshal(sidecar, &decoded); err != nil {
		t.Fatalf("failed to decode sidecar JSON: %v", err)
	}
	if decoded.Evidence.ClosestScooperDistance != nil {
		t.Errorf("expected closest_scooper_distance to be null with no scooper in frame, got %v", *decoded.Evidence.ClosestScooperDistance)
	}
}
