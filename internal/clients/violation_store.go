package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultViolationStoreTimeout is the ~10s suspension-point budget for
// the violation store write, spec.md §5.
const DefaultViolationStoreTimeout = 10 * time.Second

// DefaultRetryBufferCapacity bounds the in-memory queue of violations
// awaiting a retried write, spec.md §6.
const DefaultRetryBufferCapacity = 256

// DefaultRetryWindow is how long a queued write keeps retrying before
// it is dropped and ErrSessionHalted is returned, spec.md §6/§7.
const DefaultRetryWindow = 60 * time.Second

// ErrSessionHalted reports an irrecoverable persistence loss (spec.md
// §7's Fatal taxonomy entry): Write returns it when the retry buffer is
// already full, and DrainRetryBuffer returns it when a queued entry is
// still failing after its retry window. The record concerned is dropped.
var ErrSessionHalted = errors.New("violation store: retry buffer exhausted, session halted")

// ViolationRecord is the wire body for POST /violations, spec.md §6.
type ViolationRecord struct {
	SessionID        string         `json:"session_id"`
	WorkerID         *int           `json:"worker_id,omitempty"`
	ROIZoneID        string         `json:"roi_zone_id"`
	FrameNumber      int            `json:"frame_number"`
	FramePath        string         `json:"frame_path"`
	FrameBase64      string         `json:"frame_base64"`
	ViolationType    string         `json:"violation_type"`
	Confidence       float64        `json:"confidence"`
	Severity         string         `json:"severity"`
	Description      string         `json:"description"`
	BoundingBoxes    map[string]any `json:"bounding_boxes,omitempty"`
	HandPosition     map[string]any `json:"hand_position,omitempty"`
	ScooperPresent   bool           `json:"scooper_present"`
	ScooperDistance  *float64       `json:"scooper_distance,omitempty"`
	MovementPattern  string         `json:"movement_pattern,omitempty"`
	enqueuedAt       time.Time
}

// ViolationStoreClient posts violation records, with retries and a
// bounded background retry queue for writes that fail even after
// retries, spec.md §6/§7.
type ViolationStoreClient struct {
	BaseURL string
	HTTP    HTTPDoer
	Retrier Retrier
	Timeout time.Duration
	Log     *zap.SugaredLogger

	mu          sync.Mutex
	retryBuffer []*ViolationRecord
	bufferCap   int
	retryWindow time.Duration
}

// NewViolationStoreClient constructs a ViolationStoreClient with the
// spec's default timeout, retry policy, buffer capacity, and retry
// window.
func NewViolationStoreClient(baseURL string, doer HTTPDoer, log *zap.SugaredLogger) *ViolationStoreClient {
	return &ViolationStoreClient{
		BaseURL:     baseURL,
		HTTP:        doer,
		Retrier:     DefaultRetrier(),
		Timeout:     DefaultViolationStoreTimeout,
		Log:         log,
		bufferCap:   DefaultRetryBufferCapacity,
		retryWindow: DefaultRetryWindow,
	}
}

// Write posts rec. On exhausted retries it is queued for background
// retry (DrainRetryBuffer) instead of failing the caller immediately,
// unless the buffer is already full, in which case rec is dropped and
// ErrSessionHalted is returned.
func (c *ViolationStoreClient) Write(ctx context.Context, rec *ViolationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	err := c.Retrier.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, rec)
	})
	instrument("violation_store", start, err)
	if err == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.retryBuffer) >= c.bufferCap {
		return ErrSessionHalted
	}
	rec.enqueuedAt = time.Now()
	c.retryBuffer = append(c.retryBuffer, rec)
	if c.Log != nil {
		c.Log.Warnw("queued violation write for retry", "session_id", rec.SessionID, "error", err)
	}
	return nil
}

// DrainRetryBuffer attempts to flush every queued record, dropping
// (with a fatal-halt error returned to the caller) any entry that has
// exceeded the retry window. Intended to run on a background ticker.
func (c *ViolationStoreClient) DrainRetryBuffer(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	pending := c.retryBuffer
	c.retryBuffer = nil
	c.mu.Unlock()

	var remaining []*ViolationRecord
	var halted error
	for _, rec := range pending {
		start := time.Now()
		err := c.post(ctx, rec)
		instrument("violation_store", start, err)
		if err != nil {
			if now.Sub(rec.enqueuedAt) > c.retryWindow {
				halted = ErrSessionHalted
				if c.Log != nil {
					c.Log.Errorw("violation write exhausted retry window", "session_id", rec.SessionID)
				}
				continue
			}
			remaining = append(remaining, rec)
			continue
		}
	}

	c.mu.Lock()
	c.retryBuffer = append(remaining, c.retryBuffer...)
	c.mu.Unlock()

	return halted
}

// PendingCount reports how many writes are currently queued for retry.
func (c *ViolationStoreClient) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.retryBuffer)
}

func (c *ViolationStoreClient) post(ctx context.Context, rec *ViolationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal violation record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/violations", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build violation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("violation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("violation request returned status %d", resp.StatusCode)
	}
	return nil
}
