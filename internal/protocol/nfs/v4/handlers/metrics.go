package handlers

import (
	"strconv"
	"time"

	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/state"
	"github.com/marmos91/nfs4d/internal/protocol/nfs/v4/types"
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Prometheus Metrics for the COMPOUND engine
// ============================================================================

// Metrics provides Prometheus metrics for COMPOUND processing.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// CompoundsTotal counts COMPOUND requests by minor version and final status.
	CompoundsTotal *prometheus.CounterVec

	// CompoundDuration observes the time spent in ProcessCompound.
	CompoundDuration *prometheus.HistogramVec

	// OpsTotal counts executed operations.
	// Labels: minor, op, result ("success" or "failed").
	OpsTotal *prometheus.CounterVec

	// OpDuration observes per-operation latency.
	OpDuration *prometheus.HistogramVec

	// EnvelopeRejects counts requests refused before any operation ran.
	EnvelopeRejects *prometheus.CounterVec

	// ReplayHits counts replies served from a slot's replay cache,
	// labeled by the operation that detected the retransmission.
	ReplayHits *prometheus.CounterVec

	// SequenceOutcomes counts SEQUENCE slot checks by outcome
	// ("new", "retry", or the error status).
	SequenceOutcomes *prometheus.CounterVec
}

// NewMetrics creates and registers the engine metrics. If reg is nil the
// collectors are created but not registered. When st is non-nil, gauges
// for the number of clients and sessions are registered as well.
func NewMetrics(reg prometheus.Registerer, st *state.Manager) *Metrics {
	m := &Metrics{
		CompoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfs4d",
			Subsystem: "compound",
			Name:      "requests_total",
			Help:      "Total number of COMPOUND requests by minor version and status",
		}, []string{"minor", "status"}),
		CompoundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nfs4d",
			Subsystem: "compound",
			Name:      "duration_seconds",
			Help:      "Time spent executing COMPOUND requests",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 16), // 50us to ~1.6s
		}, []string{"minor"}),
		OpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfs4d",
			Subsystem: "compound",
			Name:      "ops_total",
			Help:      "Total number of operations executed inside COMPOUND requests",
		}, []string{"minor", "op", "result"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nfs4d",
			Subsystem: "compound",
			Name:      "op_duration_seconds",
			Help:      "Per-operation execution latency",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 16),
		}, []string{"minor", "op"}),
		EnvelopeRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfs4d",
			Subsystem: "compound",
			Name:      "envelope_rejects_total",
			Help:      "Total number of COMPOUND requests rejected before execution",
		}, []string{"status"}),
		ReplayHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfs4d",
			Subsystem: "sessions",
			Name:      "replay_hits_total",
			Help:      "Total number of replies served from the replay cache",
		}, []string{"op"}),
		SequenceOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfs4d",
			Subsystem: "sessions",
			Name:      "sequence_total",
			Help:      "Total number of SEQUENCE slot checks by outcome",
		}, []string{"outcome"}),
	}

	if reg == nil {
		return m
	}

	m.CompoundsTotal = registerOrReuse(reg, m.CompoundsTotal).(*prometheus.CounterVec)
	m.CompoundDuration = registerOrReuse(reg, m.CompoundDuration).(*prometheus.HistogramVec)
	m.OpsTotal = registerOrReuse(reg, m.OpsTotal).(*prometheus.CounterVec)
	m.OpDuration = registerOrReuse(reg, m.OpDuration).(*prometheus.HistogramVec)
	m.EnvelopeRejects = registerOrReuse(reg, m.EnvelopeRejects).(*prometheus.CounterVec)
	m.ReplayHits = registerOrReuse(reg, m.ReplayHits).(*prometheus.CounterVec)
	m.SequenceOutcomes = registerOrReuse(reg, m.SequenceOutcomes).(*prometheus.CounterVec)

	if st != nil {
		registerOrReuse(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "nfs4d",
			Subsystem: "state",
			Name:      "clients",
			Help:      "Current number of client records",
		}, func() float64 { return float64(st.ClientCount()) }))
		registerOrReuse(reg, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "nfs4d",
			Subsystem: "state",
			Name:      "sessions",
			Help:      "Current number of NFSv4.1 sessions",
		}, func() float64 { return float64(st.SessionCount()) }))
	}

	return m
}

// registerOrReuse registers c, returning the collector already registered
// under the same descriptor on a second registration. Panics on any other
// registration failure.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func minorLabel(minor uint32) string {
	return strconv.FormatUint(uint64(minor), 10)
}

// ObserveCompound records a finished COMPOUND.
func (m *Metrics) ObserveCompound(minor, status uint32, d time.Duration) {
	if m == nil {
		return
	}
	label := minorLabel(minor)
	m.CompoundsTotal.WithLabelValues(label, types.StatusName(status)).Inc()
	m.CompoundDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ObserveOp records one executed operation.
func (m *Metrics) ObserveOp(minor uint32, name string, status uint32, d time.Duration) {
	if m == nil {
		return
	}
	label := minorLabel(minor)
	result := "success"
	if status != types.NFS4_OK {
		result = "failed"
	}
	m.OpsTotal.WithLabelValues(label, name, result).Inc()
	m.OpDuration.WithLabelValues(label, name).Observe(d.Seconds())
}

// RecordEnvelopeReject counts a request refused before execution.
func (m *Metrics) RecordEnvelopeReject(status uint32) {
	if m == nil {
		return
	}
	m.EnvelopeRejects.WithLabelValues(types.StatusName(status)).Inc()
}

// RecordReplay counts a reply served from the replay cache.
func (m *Metrics) RecordReplay(op string) {
	if m == nil {
		return
	}
	m.ReplayHits.WithLabelValues(op).Inc()
}

// RecordSequence counts a SEQUENCE slot check outcome.
func (m *Metrics) RecordSequence(outcome string) {
	if m == nil {
		return
	}
	m.SequenceOutcomes.WithLabelValues(outcome).Inc()
}
