package semcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "semcache",
			Name:      "lookups_total",
			Help:      "Semantic cache lookups by outcome (exact_hit, fuzzy_hit, miss)",
		},
		[]string{"outcome"},
	)

	cacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "semcache",
			Name:      "evictions_total",
			Help:      "Entries evicted by the LRU policy",
		},
	)

	cacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecbridge",
			Subsystem: "semcache",
			Name:      "entries",
			Help:      "Live entries in the semantic cache",
		},
	)

	cacheMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecbridge",
			Subsystem: "semcache",
			Name:      "memory_bytes",
			Help:      "Estimated memory footprint of the semantic cache",
		},
	)
)

func recordCacheLookup(outcome string) {
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

func recordCacheEviction() {
	cacheEvictionsTotal.Inc()
}

func recordCacheSize(entries int, memoryBytes int64) {
	cacheSize.Set(float64(entries))
	cacheMemoryBytes.Set(float64(memoryBytes))
}
