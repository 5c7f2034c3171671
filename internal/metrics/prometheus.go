package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recorder core.
type Metrics struct {
	// Capture metrics
	ChunksCaptured  *prometheus.CounterVec
	CaptureErrors   *prometheus.CounterVec
	ActiveCaptures  prometheus.Gauge
	RecordingLength prometheus.Histogram

	// Conversion / writer metrics
	PCMBytesWritten *prometheus.CounterVec
	WriteErrors     *prometheus.CounterVec

	// Echo cancellation metrics
	EchoRuns               prometheus.Counter
	EchoSuppressedFraction prometheus.Histogram
	EchoDelaySeconds       prometheus.Histogram

	// Recognition metrics
	RecognitionRequests  prometheus.Counter
	RecognitionSuccesses prometheus.Counter
	RecognitionFailures  prometheus.Counter
	RecognitionDuration  prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksCaptured: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duorec_chunks_captured_total",
			Help: "Total number of audio chunks delivered by capture callbacks",
		}, []string{"source"}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duorec_capture_errors_total",
			Help: "Total number of capture-path errors",
		}, []string{"source"}),
		ActiveCaptures: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "duorec_active_captures",
			Help: "Current number of running capture sources",
		}),
		RecordingLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "duorec_recording_duration_seconds",
			Help:    "Duration of finished recordings in seconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s to ~3 hours
		}),

		PCMBytesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duorec_pcm_bytes_written_total",
			Help: "Total PCM bytes appended to WAV files",
		}, []string{"source"}),
		WriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "duorec_write_errors_total",
			Help: "Total number of WAV write failures",
		}, []string{"source"}),

		EchoRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duorec_echo_runs_total",
			Help: "Total number of echo cancellation passes",
		}),
		EchoSuppressedFraction: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "duorec_echo_suppressed_fraction",
			Help:    "Fraction of frames suppressed per echo cancellation pass",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),
		EchoDelaySeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "duorec_echo_delay_seconds",
			Help:    "Estimated echo delay per cancellation pass",
			Buckets: prometheus.LinearBuckets(0, 0.02, 11), // 0 to 200ms
		}),

		RecognitionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duorec_recognition_requests_total",
			Help: "Total number of recognition requests sent",
		}),
		RecognitionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duorec_recognition_successes_total",
			Help: "Total number of successful recognition requests",
		}),
		RecognitionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "duorec_recognition_failures_total",
			Help: "Total number of failed recognition requests",
		}),
		RecognitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "duorec_recognition_duration_seconds",
			Help:    "Duration of recognition requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8.5 minutes
		}),
	}
}

// RecordChunkCaptured counts one capture callback for a source.
func (m *Metrics) RecordChunkCaptured(source string) {
	m.ChunksCaptured.WithLabelValues(source).Inc()
}

// RecordCaptureError counts one capture-path error for a source.
func (m *Metrics) RecordCaptureError(source string) {
	m.CaptureErrors.WithLabelValues(source).Inc()
}

// SetActiveCaptures sets the number of currently running sources.
func (m *Metrics) SetActiveCaptures(n int) {
	m.ActiveCaptures.Set(float64(n))
}

// RecordRecordingFinished observes a finished recording's duration.
func (m *Metrics) RecordRecordingFinished(durationSeconds float64) {
	m.RecordingLength.Observe(durationSeconds)
}

// RecordPCMWritten counts PCM bytes appended for a source.
func (m *Metrics) RecordPCMWritten(source string, n int) {
	m.PCMBytesWritten.WithLabelValues(source).Add(float64(n))
}

// RecordWriteError counts one WAV write failure for a source.
func (m *Metrics) RecordWriteError(source string) {
	m.WriteErrors.WithLabelValues(source).Inc()
}

// RecordEchoRun observes one echo cancellation pass.
func (m *Metrics) RecordEchoRun(suppressedFraction, delaySeconds float64) {
	m.EchoRuns.Inc()
	m.EchoSuppressedFraction.Observe(suppressedFraction)
	m.EchoDelaySeconds.Observe(delaySeconds)
}

// RecordRecognitionRequest counts one recognition request.
func (m *Metrics) RecordRecognitionRequest() {
	m.RecognitionRequests.Inc()
}

// RecordRecognitionSuccess records a successful recognition request.
func (m *Metrics) RecordRecognitionSuccess(durationSeconds float64) {
	m.RecognitionSuccesses.Inc()
	m.RecognitionDuration.Observe(durationSeconds)
}

// RecordRecognitionFailure records a failed recognition request.
func (m *Metrics) RecordRecognitionFailure(durationSeconds float64) {
	m.RecognitionFailures.Inc()
	m.RecognitionDuration.Observe(durationSeconds)
}
