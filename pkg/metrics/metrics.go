// Package metrics provides Prometheus metrics for the Sage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionsProcessed tracks detection events consumed, by result
	DetectionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "lifecycle",
			Name:      "detections_processed_total",
			Help:      "Total number of detection events processed by result",
		},
		[]string{"tenant_id", "signal_type", "result"},
	)

	// LifecycleTransitions tracks persistence state transitions
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of lifecycle state transitions",
		},
		[]string{"tenant_id", "from", "to"},
	)

	// AutoEscalations tracks chronic-age escalations
	AutoEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "lifecycle",
			Name:      "auto_escalations_total",
			Help:      "Total number of chronic-age auto escalations",
		},
		[]string{"tenant_id", "signal_type"},
	)

	// CalibrationRuns tracks calibration runs by mode and outcome
	CalibrationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "calibration",
			Name:      "runs_total",
			Help:      "Total number of calibration runs by mode and outcome",
		},
		[]string{"tenant_id", "mode", "outcome"},
	)

	// CalibrationSkips tracks skipped adjustments by reason code
	CalibrationSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "calibration",
			Name:      "skips_total",
			Help:      "Total number of skipped adjustments by reason",
		},
		[]string{"tenant_id", "reason"},
	)

	// ProfileSynthesisDuration tracks per-profile assembly time
	ProfileSynthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "profile",
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of profile synthesis in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"tenant_id"},
	)

	// ProfileBatchSize tracks batch synthesis sizes
	ProfileBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "profile",
			Name:      "batch_size",
			Help:      "Number of profiles assembled per batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordDetection records a processed detection event
func RecordDetection(tenantID, signalType, result string) {
	DetectionsProcessed.WithLabelValues(tenantID, signalType, result).Inc()
}

// RecordTransition records a lifecycle state transition
func RecordTransition(tenantID, from, to string) {
	LifecycleTransitions.WithLabelValues(tenantID, from, to).Inc()
}

// RecordCalibrationRun records a calibration run
func RecordCalibrationRun(tenantID, mode, outcome string) {
	CalibrationRuns.WithLabelValues(tenantID, mode, outcome).Inc()
}

// RecordCalibrationSkip records a skipped adjustment
func RecordCalibrationSkip(tenantID, reason string) {
	CalibrationSkips.WithLabelValues(tenantID, reason).Inc()
}
