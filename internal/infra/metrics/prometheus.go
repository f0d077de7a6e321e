package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkwtt_jobs_processed_total",
		Help: "Total number of scan jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mkwtt_job_processing_duration_seconds",
		Help:    "Duration of scan pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mkwtt_frames_sampled_total",
		Help: "Total number of frames decoded and classified",
	})

	OCRDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mkwtt_ocr_duration_seconds",
		Help:    "Duration of a single OCR call, by HUD region",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"region"})

	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkwtt_detections_total",
		Help: "Total number of race times detected, by source",
	}, []string{"source"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mkwtt_active_workers",
		Help: "Number of currently active workers scanning videos",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkwtt_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
