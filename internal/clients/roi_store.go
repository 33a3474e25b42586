package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

// DefaultROIStoreTimeout is the ~5s suspension-point budget for the ROI
// store call, spec.md §5.
const DefaultROIStoreTimeout = 5 * time.Second

// DefaultROICacheTTL matches spec.md §2's "cached with short TTL or
// refetched each frame".
const DefaultROICacheTTL = 2 * time.Second

// DefaultROILastKnownGoodWindow is the fallback window spec.md §5
// grants a stale ROI snapshot before the frame is skipped instead.
const DefaultROILastKnownGoodWindow = 60 * time.Second

type roiWire struct {
	Name            string `json:"name"`
	Shape           string `json:"shape"`
	Coordinates     json.RawMessage `json:"coordinates"`
	RequiresScooper bool   `json:"requires_scooper"`
	IngredientType  string `json:"ingredient_type"`
}

type roiListResponse struct {
	Data []roiWire `json:"data"`
}

type rectCoords struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ROIStoreClient calls the ROI Store's GET /rois endpoint with a
// short-TTL cache and a last-known-good fallback window, spec.md §6/§5.
type ROIStoreClient struct {
	BaseURL string
	HTTP    HTTPDoer
	Retrier Retrier
	Timeout time.Duration
	TTL     time.Duration
	MaxStale time.Duration
	Log     *zap.SugaredLogger

	mu          sync.Mutex
	cached      []model.ROI
	fetchedAt   time.Time
	haveSnapshot bool
}

// NewROIStoreClient constructs an ROIStoreClient with the spec's default
// timeout, cache TTL, and fallback window.
func NewROIStoreClient(baseURL string, doer HTTPDoer, log *zap.SugaredLogger) *ROIStoreClient {
	return &ROIStoreClient{
		BaseURL:  baseURL,
		HTTP:     doer,
		Retrier:  DefaultRetrier(),
		Timeout:  DefaultROIStoreTimeout,
		TTL:      DefaultROICacheTTL,
		MaxStale: DefaultROILastKnownGoodWindow,
		Log:      log,
	}
}

// Fetch returns the current ROI set, serving from cache within the TTL,
// refetching on expiry, and falling back to the last-known-good
// snapshot (if within MaxStale) on a failed refetch. ok is false only
// when there is no usable snapshot at all — the caller must skip the
// frame in that case, per spec.md §5.
func (c *ROIStoreClient) Fetch(ctx context.Context, now time.Time) (rois []model.ROI, ok bool) {
	c.mu.Lock()
	if c.haveSnapshot && now.Sub(c.fetchedAt) < c.TTL {
		defer c.mu.Unlock()
		return c.cached, true
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	var wire roiListResponse
	err := c.Retrier.Do(ctx, func(ctx context.Context) error {
		return c.call(ctx, &wire)
	})
	instrument("roi_store", start, err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.Log != nil {
			c.Log.Warnw("roi store call failed", "error", err)
		}
		if c.haveSnapshot && now.Sub(c.fetchedAt) <= c.MaxStale {
			return c.cached, true
		}
		return nil, false
	}

	parsed := make([]model.ROI, 0, len(wire.Data))
	for _, w := range wire.Data {
		roi, perr := parseROI(w)
		if perr != nil {
			if c.Log != nil {
				c.Log.Warnw("skipping malformed roi", "name", w.Name, "error", perr)
			}
			continue
		}
		parsed = append(parsed, roi)
	}

	c.cached = parsed
	c.fetchedAt = now
	c.haveSnapshot = true
	return c.cached, true
}

func parseROI(w roiWire) (model.ROI, error) {
	roi := model.ROI{
		Name:            w.Name,
		RequiresScooper: w.RequiresScooper,
		IngredientType:  w.IngredientType,
	}
	switch w.Shape {
	case "polygon":
		roi.Shape = model.ShapePolygon
		var coords [][2]float64
		if err := json.Unmarshal(w.Coordinates, &coords); err != nil {
			return model.ROI{}, fmt.Errorf("unmarshal polygon coordinates: %w", err)
		}
		pts := make([]model.Point, len(coords))
		for i, c := range coords {
			pts[i] = model.Point{X: c[0], Y: c[1]}
		}
		roi.Points = pts
	default:
		roi.Shape = model.ShapeRectangle
		var rc rectCoords
		if err := json.Unmarshal(w.Coordinates, &rc); err != nil {
			return model.ROI{}, fmt.Errorf("unmarshal rectangle coordinates: %w", err)
		}
		roi.Rect = model.Rect{X: rc.X, Y: rc.Y, W: rc.Width, H: rc.Height}
	}
	return roi, nil
}

func (c *ROIStoreClient) call(ctx context.Context, out *roiListResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/rois", nil)
	if err != nil {
		return fmt.Errorf("build roi request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("roi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("roi request returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode roi response: %w", err)
	}
	return nil
}
