package heart

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sovereignd_heart_validations_total",
			Help: "Validation verdicts by decision.",
		},
		[]string{"decision"},
	)

	validationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sovereignd_heart_validation_duration_seconds",
			Help:    "Time spent evaluating one validation call.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func observeValidation(d Decision, elapsed time.Duration) {
	validationsTotal.WithLabelValues(string(d)).Inc()
	validationDuration.Observe(elapsed.Seconds())
}
