package logic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	predictionsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_served_total",
		Help: "Predictions returned, by mode and whether they came from cache",
	}, []string{"mode", "source"})

	predictionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_failed_total",
		Help: "Prediction requests that failed, by reason",
	}, []string{"reason"})

	predictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictions_compute_duration_seconds",
		Help:    "Time to extract features and run the ensemble for one match",
		Buckets: prometheus.DefBuckets,
	})

	modelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_model_loads_total",
		Help: "Model artifact loads, by result",
	}, []string{"result"})

	modelState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictions_model_state",
		Help: "Resident model state (0 unloaded, 1 loading, 2 loaded)",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_cache_errors_total",
		Help: "Cache operations that failed, by operation",
	}, []string{"op"})
)

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case IsClientError(err):
		return "client"
	default:
		return "internal"
	}
}
