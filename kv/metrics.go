package kv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Metrics holds the Prometheus instrumentation for engine operations,
// registered only when Config.MetricsEnabled is set. Grounded on
// _examples/ssargent-freyjadb/pkg/api/metrics.go's Metrics struct
// (CounterVec/HistogramVec via promauto), scoped down from HTTP/auth
// concerns to tree-operation counts, latencies, and cache size.
type Metrics struct {
	opsTotal      *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	flushesTotal  *prometheus.CounterVec
	nodeCacheSize *prometheus.GaugeVec
}

// NewMetrics creates and registers the engine's Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		opsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bptreedb_operations_total",
				Help: "Total number of tree operations by kind and outcome.",
			},
			[]string{"operation", "status"},
		),
		opDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bptreedb_operation_duration_seconds",
				Help:    "Tree operation latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		flushesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bptreedb_flushes_total",
				Help: "Total number of per-tree flushes.",
			},
			[]string{"tree"},
		),
		nodeCacheSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bptreedb_node_cache_size",
				Help: "Number of nodes resident in a tree's node cache.",
			},
			[]string{"tree"},
		),
	}
}

// RecordOp records the outcome and latency of one insert/find/remove call.
func (m *Metrics) RecordOp(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusOK
	if err != nil {
		status = statusError
	}
	m.opsTotal.WithLabelValues(operation, status).Inc()
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFlush records one successful flush of the named tree.
func (m *Metrics) RecordFlush(tree string) {
	if m == nil {
		return
	}
	m.flushesTotal.WithLabelValues(tree).Inc()
}

// SetNodeCacheSize records the current resident node count for the named tree.
func (m *Metrics) SetNodeCacheSize(tree string, size int) {
	if m == nil {
		return
	}
	m.nodeCacheSize.WithLabelValues(tree).Set(float64(size))
}
