package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for progressive saves.
type Metrics struct {
	SavesTotal      *prometheus.CounterVec
	StorageRetries  *prometheus.CounterVec
	SaveDuration    prometheus.Histogram
	PendingSaves    prometheus.Gauge
	CoalescedSaves  prometheus.Counter
	LoadDuration    prometheus.Histogram
	EntitiesDeleted *prometheus.CounterVec
}

// New registers the profile metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the profile metrics with reg. Tests pass a
// fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_profile_saves_total",
			Help: "Entity saves by kind and outcome",
		}, []string{"kind", "outcome"}),
		StorageRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_profile_storage_retries_total",
			Help: "Storage operations retried after a transient failure",
		}, []string{"op"}),
		SaveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "entrypass_profile_save_duration_seconds",
			Help:    "Duration of merge-save operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PendingSaves: factory.NewGauge(prometheus.GaugeOpts{
			Name: "entrypass_profile_pending_saves",
			Help: "Debounced saves waiting to be written",
		}),
		CoalescedSaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "entrypass_profile_coalesced_saves_total",
			Help: "Edits merged into an already pending save",
		}),
		LoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "entrypass_profile_load_duration_seconds",
			Help:    "Duration of entity loads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		EntitiesDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypass_profile_entities_deleted_total",
			Help: "Entities deleted by kind",
		}, []string{"kind"}),
	}
}

// IncrementSave records a save outcome: "written", "unchanged" or "failed".
func (m *Metrics) IncrementSave(kind, outcome string) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementRetry(op string) {
	if m == nil {
		return
	}
	m.StorageRetries.WithLabelValues(op).Inc()
}

// ObserveSave records the duration of a save.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSave(start time.Time) {
	if m == nil {
		return
	}
	m.SaveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveLoad(start time.Time) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingSaves.Set(float64(n))
}

func (m *Metrics) IncrementCoalesced() {
	if m == nil {
		return
	}
	m.CoalescedSaves.Inc()
}

func (m *Metrics) IncrementDeleted(kind string) {
	if m == nil {
		return
	}
	m.EntitiesDeleted.WithLabelValues(kind).Inc()
}
