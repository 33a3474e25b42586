// Package clients implements the pipeline's external HTTP collaborators
// (detector, ROI store, violation store, message broker), spec.md §6,
// with the retry/timeout/fallback taxonomy from spec.md §7. Grounded on
// original_source/services/violation_detector/main.py's httpx.AsyncClient
// usage. No HTTP client library appears anywhere in the retrieval pack
// (see SPEC_FULL.md §8), so these are hand-rolled net/http clients with
// a shared retry helper, the way the teacher hand-rolls its own
// VMCSender protocol client over net.UDPConn rather than reach for a
// framework.
package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/metrics"
)

// instrument records an external collaborator call's latency and, on
// failure, increments its error counter — SPEC_FULL.md §7's
// external_call_duration_seconds/external_call_errors_total.
func instrument(client string, start time.Time, err error) {
	metrics.ExternalCallDuration.WithLabelValues(client).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalCallErrorsTotal.WithLabelValues(client).Inc()
	}
}

// HTTPDoer is the seam every client depends on instead of *http.Client
// directly, so tests can substitute httptest.Server-backed doubles
// without a mocking library (matching the teacher's CameraSource/
// Processor/Sender interface seams).
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Retrier retries an operation a bounded number of times with a fixed
// backoff, honoring context cancellation between attempts.
type Retrier struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetrier returns the spec's retry policy: 2 retries (3 total
// attempts), 200ms backoff.
func DefaultRetrier() Retrier {
	return Retrier{MaxAttempts: 3, Backoff: 200 * time.Millisecond}
}

// Do runs fn up to r.MaxAttempts times, stopping early on success or on
// context cancellation. It returns the last error seen.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < r.MaxAttempts-1 && r.Backoff > 0 {
			select {
			case <-time.After(r.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
