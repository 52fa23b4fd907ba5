package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/nfs4d/pkg/export"
	"github.com/marmos91/nfs4d/pkg/objstore"
)

// statser is implemented by object stores that keep an entry cache.
type statser interface {
	Stats() objstore.CacheStats
}

// ExportCollector reports the entry cache of every export at scrape time.
type ExportCollector struct {
	table *export.Table

	entries *prometheus.Desc
	lookups *prometheus.Desc
}

var _ prometheus.Collector = (*ExportCollector)(nil)

// NewExportCollector creates a collector over the exports of table.
func NewExportCollector(table *export.Table) *ExportCollector {
	return &ExportCollector{
		table: table,
		entries: prometheus.NewDesc(
			"nfs4d_objstore_entries",
			"Cached object entries per export by state (live or idle)",
			[]string{"export", "state"}, nil,
		),
		lookups: prometheus.NewDesc(
			"nfs4d_objstore_lookups_total",
			"Entry cache lookups per export by result (hit or miss)",
			[]string{"export", "result"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *ExportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.lookups
}

// Collect implements prometheus.Collector.
func (c *ExportCollector) Collect(ch chan<- prometheus.Metric) {
	for _, exp := range c.table.All() {
		s, ok := exp.Store.(statser)
		if !ok {
			continue
		}
		st := s.Stats()
		id := strconv.FormatUint(uint64(exp.ID), 10)

		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Live), id, "live")
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Idle), id, "idle")
		ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.Hits), id, "hit")
		ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.CounterValue, float64(st.Misses), id, "miss")
	}
}
