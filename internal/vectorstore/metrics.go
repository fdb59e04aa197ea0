package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the migration adapters. Secondary-write failures
// are absorbed from the caller's perspective, so the counters here are the
// only place they remain visible.
var (
	secondaryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "replicator",
			Name:      "secondary_writes_total",
			Help:      "Secondary write attempts by the dual-write replicator",
		},
		[]string{"domain", "operation", "result"},
	)

	// ReplicationQueueDepth tracks the async replication queue backlog.
	ReplicationQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vecbridge",
			Subsystem: "replicator",
			Name:      "queue_depth",
			Help:      "Number of secondary writes waiting in the async queue",
		},
		[]string{"domain"},
	)

	replicationDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "replicator",
			Name:      "dropped_writes_total",
			Help:      "Secondary writes dropped because the async queue was full",
		},
		[]string{"domain", "operation"},
	)

	routerSecondaryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "router",
			Name:      "secondary_writes_total",
			Help:      "Secondary write attempts by the read/write split router",
		},
		[]string{"domain", "operation", "result"},
	)

	routerFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "router",
			Name:      "read_fallbacks_total",
			Help:      "Secondary reads re-run against the primary, by reason",
		},
		[]string{"domain", "reason"},
	)
)

// RecordSecondaryWrite records a replicator secondary write outcome.
func RecordSecondaryWrite(domain, operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	secondaryWritesTotal.WithLabelValues(domain, operation, result).Inc()
}

// RecordReplicationDrop records a secondary write dropped on queue overflow.
func RecordReplicationDrop(domain, operation string) {
	replicationDropsTotal.WithLabelValues(domain, operation).Inc()
}

// RecordRouterSecondaryWrite records a router secondary write outcome.
func RecordRouterSecondaryWrite(domain, operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	routerSecondaryWritesTotal.WithLabelValues(domain, operation, result).Inc()
}

// RecordRouterFallback records a read fallback to the primary.
// Reason is "error" or "empty".
func RecordRouterFallback(domain, reason string) {
	routerFallbacksTotal.WithLabelValues(domain, reason).Inc()
}
