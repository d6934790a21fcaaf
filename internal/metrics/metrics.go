// Package metrics exposes Prometheus instrumentation for the ingestor and
// projector binaries. All constructors return nil when metrics are
// disabled; every method on a nil receiver is a no-op, so callers never
// need to branch on whether metrics are enabled.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// Init creates the process-wide registry. Must be called before any
// NewXxxMetrics constructor for those constructors to return a live
// implementation instead of nil.
func Init() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool { return enabled.Load() }

// Registry returns the process-wide registry, or nil if Init was never
// called.
func Registry() *prometheus.Registry { return registry }
