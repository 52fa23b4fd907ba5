// Package metrics provides the Prometheus registry and the standalone
// metrics HTTP server of nfs4d.
//
// Metrics are optional. Components take a prometheus.Registerer and accept
// nil, so the server runs with zero collection overhead when metrics are
// disabled.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := handlers.NewMetrics(metrics.GetRegistry(), stateManager)
//	metrics.GetRegistry().MustRegister(metrics.NewExportCollector(table))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read many times.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry with the Go runtime and process
// collectors. Later calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = r
	})
}

// GetRegistry returns the global registry, or nil if InitRegistry has not
// been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
