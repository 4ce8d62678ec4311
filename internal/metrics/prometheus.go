package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcriber
type Metrics struct {
	// Capture metrics
	BlocksCaptured prometheus.Counter
	Recording      prometheus.Gauge

	// Chunk assembly metrics
	ChunksAssembled prometheus.Counter
	ChunksSkipped   *prometheus.CounterVec
	ChunkDuration   prometheus.Histogram

	// Engine metrics
	EngineRequests  prometheus.Counter
	EngineSuccesses prometheus.Counter
	EngineFailures  prometheus.Counter
	EngineDuration  prometheus.Histogram

	// Filter metrics
	SegmentsReceived prometheus.Counter
	SegmentsFiltered *prometheus.CounterVec
	TextsRepaired    prometheus.Counter

	// Dedup metrics
	TextsAccepted prometheus.Counter
	TextsRejected *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		BlocksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_blocks_captured_total",
			Help: "Total number of audio blocks captured from the input device",
		}),
		Recording: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "transcriber_recording",
			Help: "Whether a recording session is active (1) or idle (0)",
		}),

		ChunksAssembled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_chunks_assembled_total",
			Help: "Total number of audio chunks assembled for transcription",
		}),
		ChunksSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_chunks_skipped_total",
			Help: "Total number of audio chunks skipped before transcription",
		}, []string{"reason"}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_chunk_duration_seconds",
			Help:    "Duration of assembled audio chunks",
			Buckets: []float64{1.0, 2.0, 4.0, 6.0, 8.0, 10.0, 12.0},
		}),

		EngineRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_engine_requests_total",
			Help: "Total number of transcription requests sent to the engine",
		}),
		EngineSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_engine_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		EngineFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_engine_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		EngineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcriber_engine_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0},
		}),

		SegmentsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_segments_received_total",
			Help: "Total number of segments returned by the engine",
		}),
		SegmentsFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_segments_filtered_total",
			Help: "Total number of segments dropped by the hallucination filter",
		}, []string{"reason"}),
		TextsRepaired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_texts_repaired_total",
			Help: "Total number of texts altered by repetition stripping",
		}),

		TextsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "transcriber_texts_accepted_total",
			Help: "Total number of transcript texts delivered to the sink",
		}),
		TextsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_texts_rejected_total",
			Help: "Total number of transcript texts rejected by deduplication",
		}, []string{"reason"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "transcriber_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transcriber_http_request_duration_seconds",
			Help:    "Duration of HTTP API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
