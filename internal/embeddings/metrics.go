package embeddings

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "embeddings",
			Name:      "generations_total",
			Help:      "Embedding generation requests by model and result",
		},
		[]string{"model", "result"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecbridge",
			Subsystem: "embeddings",
			Name:      "generation_duration_seconds",
			Help:      "Embedding generation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	generatedTexts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecbridge",
			Subsystem: "embeddings",
			Name:      "texts_total",
			Help:      "Texts embedded, counting each batch element",
		},
		[]string{"model"},
	)
)

func recordGeneration(model string, textCount int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	generationsTotal.WithLabelValues(model, result).Inc()
	generationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err == nil {
		generatedTexts.WithLabelValues(model).Add(float64(textCount))
	}
}
