package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/observability/metrics"
	"speakdrill/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrSessionActive   = errors.New("a recording session is already in progress")
	ErrInvalidLimits   = errors.New("maximum duration must not be shorter than minimum duration")
)

const (
	DefaultMaxDuration  = 120
	DefaultMinDuration  = 60
	DefaultFlushTimeout = 500 * time.Millisecond
)

// PermissionAlert is shown when the microphone cannot be acquired.
const PermissionAlert = "Please allow microphone access to record"

// Config controls recording limits and capture settings.
type Config struct {
	Capture      ports.CaptureConfig
	Recognition  ports.RecognitionConfig
	MaxDuration  int // seconds
	MinDuration  int // seconds
	FlushTimeout time.Duration
	ChunkSize    int
}

// RecordingController owns one recording session at a time: microphone
// capture, the live transcript preview, and the duration policy.
type RecordingController struct {
	capture    ports.CaptureSource
	recognizer ports.SpeechRecognizer
	clock      ports.Clock
	events     ports.EventSink
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	cfg        Config

	mu       sync.Mutex
	starting bool
	current  *activeSession
	sessions int
}

func NewRecordingController(
	capture ports.CaptureSource,
	recognizer ports.SpeechRecognizer,
	clock ports.Clock,
	events ports.EventSink,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg Config,
) (*RecordingController, error) {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.MaxDuration < cfg.MinDuration {
		return nil, fmt.Errorf("%w: max=%ds min=%ds", ErrInvalidLimits, cfg.MaxDuration, cfg.MinDuration)
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	cfg.Recognition.Continuous = true
	cfg.Recognition.InterimResults = true

	return &RecordingController{
		capture:    capture,
		recognizer: recognizer,
		clock:      clock,
		events:     events,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// Limits returns the effective minimum and maximum durations in seconds.
func (c *RecordingController) Limits() (minSeconds, maxSeconds int) {
	return c.cfg.MinDuration, c.cfg.MaxDuration
}

// Start acquires the microphone and begins a new session. On permission
// failure the user is alerted and the controller stays idle.
func (c *RecordingController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil || c.starting {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.starting = true
	c.sessions++
	id := c.sessions
	c.mu.Unlock()

	active, err := c.startSession(ctx, id)

	c.mu.Lock()
	c.starting = false
	if err == nil {
		c.current = active
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.events.RecordingStateChanged(true)
	c.launch(active)
	return nil
}

func (c *RecordingController) startSession(ctx context.Context, id int) (*activeSession, error) {
	logger := c.logger.With().Int("session", id).Logger()
	sessionCtx, cancel := context.WithCancel(ctx)

	capture, err := c.capture.Acquire(sessionCtx, c.cfg.Capture)
	if err != nil {
		cancel()
		c.metrics.RecordPermissionDenied()
		logger.Error().Err(err).Msg("microphone acquisition failed")
		c.events.Alert(domain.ErrorCodePermission, PermissionAlert)
		if !errors.Is(err, domain.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
		}
		return nil, err
	}

	active := &activeSession{
		ctx:        sessionCtx,
		cancel:     cancel,
		inbox:      make(chan sessionEvent, 64),
		done:       make(chan struct{}),
		logger:     logger,
		capture:    capture,
		status:     domain.SessionStatusRecording,
		transcript: newTranscriptBuffer(),
	}

	var recognition ports.RecognitionStream
	err = domain.ErrRecognitionUnavailable
	if c.recognizer != nil {
		recognition, err = c.recognizer.Start(sessionCtx, c.cfg.Recognition)
	}
	switch {
	case errors.Is(err, domain.ErrRecognitionUnavailable):
		logger.Debug().Msg("speech recognition unavailable; recording without live transcript")
	case err != nil:
		logger.Warn().Err(err).Msg("speech recognition failed to start")
	default:
		active.recognition = recognition
		logger.Debug().Str("language", c.cfg.Recognition.Language).Msg("speech recognition started")
	}

	active.ticker = c.clock.NewTicker(time.Second)
	active.publish()
	c.metrics.RecordSessionStarted()
	logger.Info().Int("min", c.cfg.MinDuration).Int("max", c.cfg.MaxDuration).Msg("recording started")
	return active, nil
}

func (c *RecordingController) launch(active *activeSession) {
	go pumpCaptureChunks(active.capture, active.recognition, c.cfg.ChunkSize, active)
	go forwardTicks(active.ticker, active)
	if active.recognition != nil {
		go consumeRecognitionEvents(active.recognition, active)
	}
	go c.run(active)
}

// Stop requests the end of the current session. Before the minimum duration
// it returns a *domain.PrematureStopError and the session keeps recording.
// Once accepted, completion is delivered through EventSink.RecordingComplete.
func (c *RecordingController) Stop() error {
	return c.request(func(reply chan error) sessionEvent { return stopRequest{reply: reply} })
}

// Abort discards the current session without delivering a capture.
func (c *RecordingController) Abort() error {
	return c.request(func(reply chan error) sessionEvent { return abortRequest{reply: reply} })
}

func (c *RecordingController) request(build func(chan error) sessionEvent) error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}

	reply := make(chan error, 1)
	if !active.post(build(reply)) {
		return ErrNoActiveSession
	}
	select {
	case err := <-reply:
		return err
	case <-active.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrNoActiveSession
		}
	}
}

// Status returns the current session status.
func (c *RecordingController) Status() domain.Status {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active == nil {
		return domain.Status{State: domain.SessionStatusIdle}
	}
	state, elapsed := active.getState()
	return domain.Status{
		State:          state,
		Active:         state == domain.SessionStatusRecording,
		ElapsedSeconds: elapsed,
	}
}

func (c *RecordingController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

// run is the single state-transition loop for a session.
func (c *RecordingController) run(s *activeSession) {
	defer close(s.done)

	go func() {
		select {
		case <-s.done:
		case <-s.ctx.Done():
			s.post(abortRequest{reply: make(chan error, 1)})
		}
	}()

	for ev := range s.inbox {
		if c.handle(s, ev) {
			return
		}
	}
}

func (c *RecordingController) handle(s *activeSession, ev sessionEvent) bool {
	switch ev := ev.(type) {
	case chunkEvent:
		if s.status == domain.SessionStatusIdle {
			return false
		}
		s.chunks = append(s.chunks, ev.data)
		c.metrics.RecordChunk(len(ev.data))

	case tickEvent:
		if s.status != domain.SessionStatusRecording {
			return false
		}
		s.elapsed++
		s.publish()
		c.events.ElapsedChanged(s.elapsed)
		if s.elapsed >= c.cfg.MaxDuration {
			s.logger.Info().Int("elapsed", s.elapsed).Msg("maximum duration reached")
			return c.beginStop(s, domain.StopReasonAutoMax)
		}

	case recognitionEvent:
		if ev.event.Err != nil {
			c.metrics.RecordRecognitionError()
			s.logger.Warn().Err(ev.event.Err).Msg("speech recognition error")
			return false
		}
		if s.status != domain.SessionStatusRecording {
			return false
		}
		c.events.TranscriptUpdated(s.transcript.Apply(ev.event.Batch))

	case stopRequest:
		if s.status != domain.SessionStatusRecording {
			ev.reply <- ErrNoActiveSession
			return false
		}
		if s.elapsed < c.cfg.MinDuration {
			rejection := &domain.PrematureStopError{Elapsed: s.elapsed, Minimum: c.cfg.MinDuration}
			c.metrics.RecordPrematureStop()
			s.logger.Info().Int("remaining", rejection.Remaining()).Msg("stop rejected before minimum duration")
			c.events.Alert(domain.ErrorCodePrematureStop, rejection.Message())
			ev.reply <- rejection
			return false
		}
		ev.reply <- nil
		return c.beginStop(s, domain.StopReasonManual)

	case abortRequest:
		if s.status == domain.SessionStatusRecording {
			c.release(s)
			c.events.RecordingStateChanged(false)
		}
		c.metrics.RecordSessionStopped(string(domain.StopReasonAborted))
		c.metrics.RecordSessionFinished(s.elapsed)
		s.status = domain.SessionStatusIdle
		s.publish()
		c.finish(s)
		s.logger.Info().Msg("recording discarded")
		ev.reply <- nil
		return true

	case captureDrainedEvent:
		s.drained = true
		if ev.err != nil {
			s.logger.Error().Err(ev.err).Msg("capture ended unexpectedly")
		}
		if s.status == domain.SessionStatusStopped {
			c.complete(s)
			return true
		}

	case flushDeadlineEvent:
		if s.status == domain.SessionStatusStopped {
			s.logger.Warn().Dur("timeout", c.cfg.FlushTimeout).Msg("encoder did not finalize in time; completing with buffered chunks")
			c.complete(s)
			return true
		}
	}
	return false
}

// beginStop performs the accepted Recording -> Stopped transition. It reports
// true when the session completed immediately.
func (c *RecordingController) beginStop(s *activeSession, reason domain.StopReason) bool {
	s.status = domain.SessionStatusStopped
	s.reason = reason
	s.publish()

	c.release(s)
	c.events.RecordingStateChanged(false)
	c.metrics.RecordSessionStopped(string(reason))
	s.logger.Info().Str("reason", string(reason)).Int("elapsed", s.elapsed).Msg("recording stopped")

	if s.drained {
		c.complete(s)
		return true
	}

	deadline := c.clock.After(c.cfg.FlushTimeout)
	go func() {
		select {
		case <-deadline:
			s.post(flushDeadlineEvent{})
		case <-s.done:
		}
	}()
	return false
}

// release stops the capture device, the ticker and the recognizer.
func (c *RecordingController) release(s *activeSession) {
	s.ticker.Stop()

	capture := s.capture
	logger := s.logger
	go func() {
		if err := capture.Stop(); err != nil {
			logger.Warn().Err(err).Msg("failed to stop audio capture cleanly")
		}
	}()

	if s.recognition != nil {
		if err := s.recognition.Stop(); err != nil {
			logger.Warn().Err(err).Msg("speech recognition failed to stop")
		}
		s.recognition = nil
	}
}

func (c *RecordingController) complete(s *activeSession) {
	capture := domain.Capture{
		Chunks:         s.chunks,
		Transcript:     s.transcript.Finalized(),
		ElapsedSeconds: s.elapsed,
		Reason:         s.reason,
		ContentType:    domain.ContentTypeWebM,
	}
	if capture.Transcript == "" {
		capture.Transcript = s.transcript.Text()
	}

	c.finish(s)
	c.metrics.RecordSessionFinished(s.elapsed)
	s.logger.Info().Int("chunks", len(capture.Chunks)).Msg("recording complete")
	c.events.RecordingComplete(capture)
}

// finish detaches the session so a new one can start.
func (c *RecordingController) finish(s *activeSession) {
	_ = s.capture.Close()
	s.cancel()

	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
}
