package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for arrival-card submissions.
type Metrics struct {
	SubmissionsTotal  *prometheus.CounterVec
	SubmitRetries     *prometheus.CounterVec
	SubmitDuration    *prometheus.HistogramVec
	CircuitRejections prometheus.Counter
	SessionsOpened    *prometheus.CounterVec
	ValidationBlocked *prometheus.CounterVec
	SnapshotsWritten  *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_submissions_total",
			Help: "Arrival-card submissions by destination and outcome",
		}, []string{"destination", "outcome"}),
		SubmitRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_submission_retries_total",
			Help: "Submission attempts retried, by failure category",
		}, []string{"category"}),
		SubmitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entrypass_submission_duration_seconds",
			Help:    "End-to-end submission duration including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"destination"}),
		CircuitRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_submission_circuit_rejections_total",
			Help: "Submissions rejected because the remote circuit was open",
		}),
		SessionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_remote_sessions_total",
			Help: "Remote sessions initialized, by outcome",
		}, []string{"destination", "outcome"}),
		ValidationBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_submission_validation_blocked_total",
			Help: "Submissions refused locally by validation",
		}, []string{"destination"}),
		SnapshotsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_snapshots_written_total",
			Help: "Entry snapshots written",
		}, []string{"destination"}),
	}
}

func (m *Metrics) IncrementSubmission(destination, outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(destination, outcome).Inc()
}

func (m *Metrics) IncrementRetry(category string) {
	if m == nil {
		return
	}
	m.SubmitRetries.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveSubmit(destination string, d time.Duration) {
	if m == nil {
		return
	}
	m.SubmitDuration.WithLabelValues(destination).Observe(d.Seconds())
}

func (m *Metrics) IncrementCircuitRejection() {
	if m == nil {
		return
	}
	m.CircuitRejections.Inc()
}

func (m *Metrics) IncrementSession(destination, outcome string) {
	if m == nil {
		return
	}
	m.SessionsOpened.WithLabelValues(destination, outcome).Inc()
}

func (m *Metrics) IncrementValidationBlocked(destination string) {
	if m == nil {
		return
	}
	m.ValidationBlocked.WithLabelValues(destination).Inc()
}

func (m *Metrics) IncrementSnapshot(destination string) {
	if m == nil {
		return
	}
	m.SnapshotsWritten.WithLabelValues(destination).Inc()
}
