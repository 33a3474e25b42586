package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultBrokerTimeout bounds the best-effort broker publish.
const DefaultBrokerTimeout = 5 * time.Second

// BrokerEvent is the payload published to the message bus on violation
// emission, spec.md §4.6.
type BrokerEvent struct {
	Topic       string `json:"topic"`
	Priority    string `json:"priority"`
	ViolationID string `json:"violation_id"`
	SessionID   string `json:"session_id"`
	ROIName     string `json:"roi_name"`
	Severity    string `json:"severity"`
}

// BrokerPublisher best-effort publishes violation events to a
// message-broker HTTP facade, grounded on
// original_source/services/message_broker/client.py's default HTTP
// bridge mode (use_direct_rabbitmq defaults to False there, so no raw
// AMQP client is needed here either).
type BrokerPublisher struct {
	BaseURL string
	HTTP    HTTPDoer
	Timeout time.Duration
	Log     *zap.SugaredLogger
}

// NewBrokerPublisher constructs a BrokerPublisher.
func NewBrokerPublisher(baseURL string, doer HTTPDoer, log *zap.SugaredLogger) *BrokerPublisher {
	return &BrokerPublisher{BaseURL: baseURL, HTTP: doer, Timeout: DefaultBrokerTimeout, Log: log}
}

// Publish posts ev to topic violation.detected with priority "high".
// Failure is logged at warn and swallowed — spec.md explicitly excludes
// message-bus delivery guarantees from scope.
func (p *BrokerPublisher) Publish(ctx context.Context, violationID, sessionID, roiName, severity string) {
	ev := BrokerEvent{
		Topic:       "violation.detected",
		Priority:    "high",
		ViolationID: violationID,
		SessionID:   sessionID,
		ROIName:     roiName,
		Severity:    severity,
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		if p.Log != nil {
			p.Log.Warnw("failed to marshal broker event", "error", err)
		}
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/publish", bytes.NewReader(payload))
	if err != nil {
		if p.Log != nil {
			p.Log.Warnw("failed to build broker request", "error", err)
		}
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.HTTP.Do(req)
	if err != nil {
		instrument("broker", start, err)
		if p.Log != nil {
			p.Log.Warnw("broker publish failed", "violation_id", violationID, "error", err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		instrument("broker", start, fmt.Errorf("broker publish returned status %d", resp.StatusCode))
		if p.Log != nil {
			p.Log.Warnw("broker publish returned non-2xx", "violation_id", violationID, "status", resp.StatusCode)
		}
		return
	}
	instrument("broker", start, nil)
}
