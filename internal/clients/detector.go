package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

// DefaultDetectorTimeout is the ~10s suspension-point budget for the
// detector call, spec.md §5.
const DefaultDetectorTimeout = 10 * time.Second

type detectRequest struct {
	FrameID    string         `json:"frame_id"`
	FrameData  string         `json:"frame_data"`
	Timestamp  string         `json:"timestamp"`
	SourceInfo map[string]any `json:"source_info,omitempty"`
}

type detectionWire struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       struct {
		X1     float64 `json:"x1"`
		Y1     float64 `json:"y1"`
		X2     float64 `json:"x2"`
		Y2     float64 `json:"y2"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"bbox"`
	Center struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"center"`
	Area float64 `json:"area"`
}

type detectResponse struct {
	Detections       []detectionWire `json:"detections"`
	ProcessingTimeMs float64         `json:"processing_time_ms"`
}

// DetectorClient calls the Object Detector's POST /detect endpoint. On
// any error (timeout, transport failure, non-2xx, malformed body) after
// retries are exhausted, it falls back to an empty detection slice —
// spec.md §5's "equivalent to no hands seen this frame" safe default.
type DetectorClient struct {
	BaseURL string
	HTTP    HTTPDoer
	Retrier Retrier
	Timeout time.Duration
	Log     *zap.SugaredLogger
}

// NewDetectorClient constructs a DetectorClient with the spec's default
// timeout and retry policy.
func NewDetectorClient(baseURL string, doer HTTPDoer, log *zap.SugaredLogger) *DetectorClient {
	return &DetectorClient{
		BaseURL: baseURL,
		HTTP:    doer,
		Retrier: DefaultRetrier(),
		Timeout: DefaultDetectorTimeout,
		Log:     log,
	}
}

// Detect fetches detections for one frame. It never returns an error to
// the caller: a failed call yields an empty slice instead, per spec.
func (c *DetectorClient) Detect(ctx context.Context, frameID string, jpegBytes []byte, ts time.Time) []model.Detection {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	var wire detectResponse
	err := c.Retrier.Do(ctx, func(ctx context.Context) error {
		return c.call(ctx, frameID, jpegBytes, ts, &wire)
	})
	instrument("detector", start, err)
	if err != nil {
		if c.Log != nil {
			c.Log.Warnw("detector call failed, falling back to empty detections", "frame_id", frameID, "error", err)
		}
		return nil
	}

	out := make([]model.Detection, 0, len(wire.Detections))
	for _, d := range wire.Detections {
		class := model.Class(d.ClassName)
		bbox := model.Rect{X: d.BBox.X1, Y: d.BBox.Y1, W: d.BBox.Width, H: d.BBox.Height}
		out = append(out, model.NewDetection(class, d.Confidence, bbox, frameID, ts))
	}
	return out
}

func (c *DetectorClient) call(ctx context.Context, frameID string, jpegBytes []byte, ts time.Time, out *detectResponse) error {
	body := detectRequest{
		FrameID:   frameID,
		FrameData: base64.StdEncoding.EncodeToString(jpegBytes),
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("detect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("detect request returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode detect response: %w", err)
	}
	return nil
}
