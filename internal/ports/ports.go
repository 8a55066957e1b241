package ports

import (
	"context"
	"io"
	"time"

	"speakdrill/internal/domain"
)

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// CaptureStream is a live, encoded microphone stream. Read yields encoded
// bytes in order and returns io.EOF once the encoder has flushed after Stop.
type CaptureStream interface {
	io.ReadCloser
	// Stop releases the device and asks the encoder to flush.
	Stop() error
}

// CaptureSource acquires microphone streams. Acquire fails with an error
// wrapping domain.ErrPermissionDenied when no stream can be opened.
type CaptureSource interface {
	Acquire(ctx context.Context, cfg CaptureConfig) (CaptureStream, error)
}

// RecognitionConfig configures a continuous recognizer.
type RecognitionConfig struct {
	Language       string
	Continuous     bool
	InterimResults bool
	SampleRate     int
	Channels       int
}

// RecognitionStream is an active recognizer session fed with encoded audio.
type RecognitionStream interface {
	// SendAudio may block while the engine is slow; callers feed it off
	// the capture path.
	SendAudio(chunk []byte) error
	Events() <-chan domain.RecognitionEvent
	// Stop ends recognition without waiting on a pending SendAudio. It may
	// fail if the engine already stopped.
	Stop() error
}

// SpeechRecognizer starts recognition sessions. Hosts without recognition
// return domain.ErrRecognitionUnavailable from Start.
type SpeechRecognizer interface {
	Start(ctx context.Context, cfg RecognitionConfig) (RecognitionStream, error)
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts time so recording timers can be driven in tests.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// EventSink receives recording lifecycle callbacks.
type EventSink interface {
	RecordingStateChanged(recording bool)
	ElapsedChanged(seconds int)
	TranscriptUpdated(text string)
	RecordingComplete(capture domain.Capture)
	Alert(code domain.ErrorCode, message string)
}

// AnalysisRequest is one audio submission for AI analysis.
type AnalysisRequest struct {
	Audio       []byte
	Filename    string
	ContentType string
	Topic       string
	Mode        domain.PracticeMode
}

// Analyzer submits captured audio to the analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (domain.Analysis, error)
}

// ProgressStore reads levels and progress and persists feedback.
type ProgressStore interface {
	Levels(ctx context.Context) ([]domain.Level, error)
	Level(ctx context.Context, id int) (domain.Level, error)
	UserProgress(ctx context.Context) (domain.Progress, error)
	SaveFeedback(ctx context.Context, feedback domain.Feedback) error
}
