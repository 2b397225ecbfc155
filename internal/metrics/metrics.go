// Package metrics provides Prometheus metrics collection for the riskcast
// prediction service. It covers bundle lifecycle, prediction throughput and
// latency, and the diagnostic counters that make silent pipeline tolerances
// observable (notably skipped one-hot lookups).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal  prometheus.Counter   // Total number of predictions served
	PredictionErrors  prometheus.Counter   // Total number of failed prediction attempts
	PredictionLatency prometheus.Histogram // End-to-end prediction latency in seconds
	ProbabilityScores prometheus.Histogram // Distribution of predicted probabilities
	HighRiskDecisions prometheus.Counter   // Predictions classified as high risk

	// Bundle metrics
	SchemaErrors  prometheus.Counter // Bundle documents rejected at validation
	BundleAge     prometheus.Gauge   // Age of the loaded bundle in seconds
	BundleReloads prometheus.Counter // Successful bundle loads over process lifetime

	// Vectorizer diagnostics
	SkippedLookups prometheus.Counter // One-hot keys with no match in the feature index

	// Server metrics
	WSSessions  prometheus.Counter // WebSocket prediction sessions opened
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_errors_total",
			Help: "Total number of failed prediction attempts",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ProbabilityScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_probability",
			Help:    "Distribution of predicted probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		HighRiskDecisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "high_risk_decisions_total",
			Help: "Predictions classified as high risk",
		}),
		SchemaErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "bundle_schema_errors_total",
			Help: "Bundle documents rejected at validation",
		}),
		BundleAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bundle_age_seconds",
			Help: "Age of the loaded bundle in seconds",
		}),
		BundleReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "bundle_loads_total",
			Help: "Successful bundle loads over process lifetime",
		}),
		SkippedLookups: factory.NewCounter(prometheus.CounterOpts{
			Name: "vectorizer_skipped_lookups_total",
			Help: "One-hot keys with no match in the feature index",
		}),
		WSSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_sessions_total",
			Help: "WebSocket prediction sessions opened",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
