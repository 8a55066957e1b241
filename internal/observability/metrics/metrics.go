// Package metrics provides Prometheus metrics for recording sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speakdrill"

// Metrics holds the recorder and submission metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsActive    prometheus.Gauge
	SessionsStopped   *prometheus.CounterVec
	PermissionDenied  prometheus.Counter
	PrematureStops    prometheus.Counter
	RecordedSeconds   prometheus.Histogram
	ChunksCaptured    prometheus.Counter
	CaptureBytes      prometheus.Counter
	RecognitionErrors prometheus.Counter

	// Submission metrics
	EmptyCaptures     prometheus.Counter
	Submissions       *prometheus.CounterVec
	ExperienceAwarded prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recording sessions started",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of recording sessions currently in progress",
		}),
		SessionsStopped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total number of recording sessions stopped",
		}, []string{"reason"}),
		PermissionDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denied_total",
			Help:      "Total number of failed microphone acquisitions",
		}),
		PrematureStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "premature_stops_total",
			Help:      "Total number of stop requests rejected before the minimum duration",
		}),
		RecordedSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recorded_seconds",
			Help:      "Length of completed recordings in seconds",
			Buckets:   []float64{30, 60, 75, 90, 105, 120, 180, 300},
		}),
		ChunksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_chunks_total",
			Help:      "Total encoded audio chunks captured",
		}),
		CaptureBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_bytes_total",
			Help:      "Total encoded audio bytes captured",
		}),
		RecognitionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Total transient speech recognition errors",
		}),
		EmptyCaptures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_captures_total",
			Help:      "Total completed sessions without any audio",
		}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total analysis submissions by outcome",
		}, []string{"mode", "outcome"}),
		ExperienceAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "experience_awarded_total",
			Help:      "Total experience points awarded",
		}),
	}
}

// RecordSessionStarted increments started and active sessions.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionStopped records why a session stopped.
func (m *Metrics) RecordSessionStopped(reason string) {
	if m == nil {
		return
	}
	m.SessionsStopped.WithLabelValues(reason).Inc()
}

// RecordSessionFinished decrements active sessions and observes the length.
func (m *Metrics) RecordSessionFinished(seconds int) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.RecordedSeconds.Observe(float64(seconds))
}

// RecordPermissionDenied counts a failed microphone acquisition.
func (m *Metrics) RecordPermissionDenied() {
	if m == nil {
		return
	}
	m.PermissionDenied.Inc()
}

// RecordPrematureStop counts a rejected stop request.
func (m *Metrics) RecordPrematureStop() {
	if m == nil {
		return
	}
	m.PrematureStops.Inc()
}

// RecordChunk counts one captured chunk.
func (m *Metrics) RecordChunk(size int) {
	if m == nil {
		return
	}
	m.ChunksCaptured.Inc()
	m.CaptureBytes.Add(float64(size))
}

// RecordRecognitionError counts a transient recognition error.
func (m *Metrics) RecordRecognitionError() {
	if m == nil {
		return
	}
	m.RecognitionErrors.Inc()
}

// RecordEmptyCapture counts a session that produced no audio.
func (m *Metrics) RecordEmptyCapture() {
	if m == nil {
		return
	}
	m.EmptyCaptures.Inc()
}

// RecordSubmission records an analysis submission outcome and awarded XP.
func (m *Metrics) RecordSubmission(mode, outcome string, xp int) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(mode, outcome).Inc()
	if xp > 0 {
		m.ExperienceAwarded.Add(float64(xp))
	}
}
