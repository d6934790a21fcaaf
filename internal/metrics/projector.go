package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProjectorMetrics instruments the projector loop and Session Writer
// (§4.6, §4.7).
type ProjectorMetrics struct {
	snapshotsProcessed *prometheus.CounterVec
	duplicateSkips     prometheus.Counter
	batchSize          prometheus.Histogram
	phaseDuration      *prometheus.HistogramVec
	actionsEmitted     *prometheus.CounterVec
}

// NewProjectorMetrics builds a Prometheus-backed ProjectorMetrics, or
// returns nil if metrics are not enabled.
func NewProjectorMetrics() *ProjectorMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := registry
	return &ProjectorMetrics{
		snapshotsProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vnas_projector_snapshots_total",
				Help: "Total snapshots processed by outcome",
			},
			[]string{"outcome"}, // "committed", "failed"
		),
		duplicateSkips: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "vnas_projector_duplicate_snapshots_total",
				Help: "Total snapshots skipped as duplicate replay of an already-archived updated_at",
			},
		),
		batchSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vnas_projector_batch_size",
				Help:    "Number of queue rows processed in a single drain pass",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		phaseDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vnas_projector_phase_duration_milliseconds",
				Help:    "Duration of each Session Writer phase",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"}, // "close", "open", "finalize", "archive"
		),
		actionsEmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vnas_projector_reconciler_actions_total",
				Help: "Total reconciler actions emitted by kind",
			},
			[]string{"kind"}, // "update_existing", "create_new", "close"
		),
	}
}

func (m *ProjectorMetrics) ObserveSnapshot(committed bool) {
	if m == nil {
		return
	}
	if committed {
		m.snapshotsProcessed.WithLabelValues("committed").Inc()
	} else {
		m.snapshotsProcessed.WithLabelValues("failed").Inc()
	}
}

func (m *ProjectorMetrics) ObserveDuplicateSkip() {
	if m == nil {
		return
	}
	m.duplicateSkips.Inc()
}

func (m *ProjectorMetrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}

func (m *ProjectorMetrics) ObservePhaseDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(float64(d.Milliseconds()))
}

func (m *ProjectorMetrics) ObserveAction(kind string) {
	if m == nil {
		return
	}
	m.actionsEmitted.WithLabelValues(kind).Inc()
}
