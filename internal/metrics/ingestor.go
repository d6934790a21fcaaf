package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestorMetrics instruments the ingestor loop (§4.4).
type IngestorMetrics struct {
	fetchTotal    *prometheus.CounterVec
	enqueueTotal  *prometheus.CounterVec
	fallbackDepth prometheus.Gauge
}

// NewIngestorMetrics builds a Prometheus-backed IngestorMetrics, or returns
// nil if metrics are not enabled.
func NewIngestorMetrics() *IngestorMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := registry
	return &IngestorMetrics{
		fetchTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vnas_ingestor_fetch_total",
				Help: "Total snapshot fetch attempts by outcome",
			},
			[]string{"outcome"}, // "success", "error"
		),
		enqueueTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "vnas_ingestor_enqueue_total",
				Help: "Total durable enqueue attempts by outcome",
			},
			[]string{"outcome"}, // "success", "fallback"
		),
		fallbackDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "vnas_ingestor_fallback_buffer_depth",
				Help: "Current number of snapshots held in the in-memory fallback buffer",
			},
		),
	}
}

func (m *IngestorMetrics) ObserveFetch(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.fetchTotal.WithLabelValues("success").Inc()
	} else {
		m.fetchTotal.WithLabelValues("error").Inc()
	}
}

func (m *IngestorMetrics) ObserveEnqueue(viaFallback bool) {
	if m == nil {
		return
	}
	if viaFallback {
		m.enqueueTotal.WithLabelValues("fallback").Inc()
	} else {
		m.enqueueTotal.WithLabelValues("success").Inc()
	}
}

func (m *IngestorMetrics) RecordFallbackDepth(n int) {
	if m == nil {
		return
	}
	m.fallbackDepth.Set(float64(n))
}
