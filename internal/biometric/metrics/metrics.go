package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the matching engine. Counters split by
// outcome so dashboards can watch rejection rates per workflow.
type Metrics struct {
	Enrollments            *prometheus.CounterVec
	Verifications          *prometheus.CounterVec
	Identifications        *prometheus.CounterVec
	VerificationDuration   prometheus.Histogram
	IdentificationDuration prometheus.Histogram
	TemplatesScanned       prometheus.Histogram
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biomatch_enrollments_total",
			Help: "Enrollment attempts by outcome",
		}, []string{"modality", "outcome"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biomatch_verifications_total",
			Help: "Verification attempts by decision",
		}, []string{"modality", "decision"}),
		Identifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biomatch_identifications_total",
			Help: "Identification attempts by decision",
		}, []string{"modality", "decision"}),
		VerificationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biomatch_verification_duration_seconds",
			Help:    "End-to-end duration of verification calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		IdentificationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biomatch_identification_duration_seconds",
			Help:    "End-to-end duration of identification calls (1:N scan path)",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TemplatesScanned: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biomatch_identification_templates_scanned",
			Help:    "Templates scanned per identification call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// RecordEnrollment counts one enrollment by outcome ("completed" or the
// failure reason code).
func (m *Metrics) RecordEnrollment(modality, outcome string) {
	m.Enrollments.WithLabelValues(modality, outcome).Inc()
}

// RecordVerification counts one verification and observes its duration.
func (m *Metrics) RecordVerification(modality, decision string, start time.Time) {
	m.Verifications.WithLabelValues(modality, decision).Inc()
	m.VerificationDuration.Observe(time.Since(start).Seconds())
}

// RecordIdentification counts one identification, observing duration and scan
// width.
func (m *Metrics) RecordIdentification(modality, decision string, scanned int, start time.Time) {
	m.Identifications.WithLabelValues(modality, decision).Inc()
	m.IdentificationDuration.Observe(time.Since(start).Seconds())
	m.TemplatesScanned.Observe(float64(scanned))
}
