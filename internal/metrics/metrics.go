// Package metrics wraps the Prometheus counters/histograms the pipeline
// exposes on /metrics, SPEC_FULL.md §7. No teacher equivalent exists;
// shaped like HM4704-proxima's package-level promauto registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ViolationsTotal counts emitted violations by severity and
	// decision tier.
	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "violations_total",
		Help: "Total number of violations emitted by the arbiter.",
	}, []string{"severity", "tier"})

	// FramesProcessedTotal counts frames processed per session.
	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frames_processed_total",
		Help: "Total number of frames processed per session.",
	}, []string{"session_id"})

	// SequencesActive reports the number of currently open ROI
	// sequences per session.
	SequencesActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sequences_active",
		Help: "Number of currently active ROI sequences.",
	}, []string{"session_id"})

	// ExternalCallDuration tracks latency of calls to external
	// collaborators (detector, roi_store, violation_store, broker).
	ExternalCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "external_call_duration_seconds",
		Help:    "Duration of external collaborator calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"client"})

	// ExternalCallErrorsTotal counts failed external collaborator calls
	// after retries are exhausted.
	ExternalCallErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "external_call_errors_total",
		Help: "Total external collaborator call failures after retries.",
	}, []string{"client"})
)
