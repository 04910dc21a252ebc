// Package metrics defines the Prometheus collectors exported by splitledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheResets    prometheus.Counter
	StaleSnapshots prometheus.Counter
	RecomputeTime  prometheus.Histogram
	RPCRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "balance_cache_hits_total",
			Help:      "Balances served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "balance_cache_misses_total",
			Help:      "Balances computed because they were not cached.",
		}),
		CacheResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "balance_cache_resets_total",
			Help:      "Times the cache was cleared after the record set changed.",
		}),
		StaleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "stale_snapshots_total",
			Help:      "Snapshots or results dropped because a newer snapshot was already applied.",
		}),
		RecomputeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splitledger",
			Name:      "recompute_duration_seconds",
			Help:      "Time spent recomputing all balances for one snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitledger",
			Name:      "rpc_requests_total",
			Help:      "RPC calls by procedure and result code.",
		}, []string{"procedure", "code"}),
	}
	reg.MustRegister(m.CacheHits, m.CacheMisses, m.CacheResets, m.StaleSnapshots, m.RecomputeTime, m.RPCRequests)
	return m
}

// ObserveCache counts a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// ObserveReset counts a cache reset.
func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.CacheResets.Inc()
}

// ObserveStale counts a dropped snapshot or result.
func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.StaleSnapshots.Inc()
}

// ObserveRecompute records how long a recompute took, in seconds.
func (m *Metrics) ObserveRecompute(seconds float64) {
	if m == nil {
		return
	}
	m.RecomputeTime.Observe(seconds)
}

// ObserveRPC counts an RPC call.
func (m *Metrics) ObserveRPC(procedure, code string) {
	if m == nil {
		return
	}
	m.RPCRequests.WithLabelValues(procedure, code).Inc()
}
