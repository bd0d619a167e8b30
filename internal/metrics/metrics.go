// Package metrics exposes package-level prometheus collectors for the
// engine: one promauto var per signal, no registry plumbing beyond
// the default one promauto registers into.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicebio_stage_duration_seconds",
		Help:    "Per-stage latency of the audio pipeline (preprocess, spectral, features)",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1.0},
	}, []string{"stage"})

	VADRetentionRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebio_vad_retention_ratio",
		Help:    "Fraction of input samples retained by the VAD gate",
		Buckets: []float64{0.1, 0.25, 0.4, 0.55, 0.7, 0.85, 1.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebio_errors_total",
		Help: "Error counts by component and error kind",
	}, []string{"component", "kind"})

	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebio_auth_attempts_total",
		Help: "Authentication attempts by decision",
	}, []string{"granted"})

	AuthConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebio_auth_confidence",
		Help:    "Authenticator confidence score distribution",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
	})

	AuthScoreSeparation = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebio_auth_score_separation",
		Help:    "Gap between the top two classifier scores per authentication attempt",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1.0, 2.0, 5.0},
	})

	TrainingEpochsToConverge = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicebio_training_epochs",
		Help:    "Epochs run before early stopping, by training kind",
		Buckets: []float64{100, 250, 500, 800, 1200, 2000, 4000, 8000, 20000, 40000},
	}, []string{"kind"})

	TrainingDegenerate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebio_training_degenerate_total",
		Help: "Training runs that emitted a degenerate classifier after exhausting restarts",
	})

	ModelClasses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebio_model_classes",
		Help: "Number of enrolled classes in the live model",
	})

	DatasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebio_dataset_records",
		Help: "Number of labelled samples in the dataset store",
	})
)
