package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
	"speakdrill/internal/recognition"
)

var ErrStreamStopped = errors.New("deepgram stream already stopped")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
}

// Recognizer implements ports.SpeechRecognizer over Deepgram's live
// transcription websocket. Audio is sent as the WebM/Opus container the
// capture produces, so no raw encoding parameters are set.
type Recognizer struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger
}

func NewRecognizer(cfg Config, logger zerolog.Logger) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Recognizer{cfg: cfg, dialer: websocket.DefaultDialer, logger: logger}
}

// Start opens a live session. Without an API key recognition is reported as
// unavailable so recording proceeds silently.
func (r *Recognizer) Start(ctx context.Context, cfg ports.RecognitionConfig) (ports.RecognitionStream, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY is not configured", domain.ErrRecognitionUnavailable)
	}

	wsURL, err := buildListenURL(r.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := r.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	stream := &liveStream{
		conn:     conn,
		events:   make(chan domain.RecognitionEvent, 64),
		audio:    make(chan []byte, 32),
		stopping: make(chan struct{}),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   r.logger,
	}

	stream.wg.Add(2)
	go stream.readLoop()
	go stream.writeLoop()
	go func() {
		stream.wg.Wait()
		close(stream.events)
		close(stream.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			stream.closeConn()
		case <-stream.done:
		}
	}()

	return stream, nil
}

type liveStream struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	events chan domain.RecognitionEvent
	audio  chan []byte
	log    recognition.ResultLog

	// stopping closes on Stop, closed when the connection is torn down,
	// readDone when the provider stops sending, done after both loops exit.
	stopping chan struct{}
	closed   chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	stopOnce  sync.Once
	closeOnce sync.Once
}

// SendAudio queues a chunk for the write loop. It returns ErrStreamStopped
// once Stop has been called, even while blocked on a full queue.
func (s *liveStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	if s.isStopped() {
		return ErrStreamStopped
	}

	select {
	case s.audio <- chunk:
		return nil
	case <-s.stopping:
		return ErrStreamStopped
	case <-s.closed:
		return errors.New("deepgram session closed")
	}
}

func (s *liveStream) Events() <-chan domain.RecognitionEvent {
	return s.events
}

// Stop ends the audio stream and asks Deepgram to flush. It never waits on
// the network; the connection closes once the provider finishes. A second
// call reports ErrStreamStopped.
func (s *liveStream) Stop() error {
	err := ErrStreamStopped
	s.stopOnce.Do(func() {
		close(s.stopping)
		err = nil
	})
	return err
}

func (s *liveStream) closeConn() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

func (s *liveStream) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk := <-s.audio:
			if !s.write(chunk) {
				return
			}
		case <-s.stopping:
			s.flushQueued()
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
				s.logger.Debug().Err(err).Msg("deepgram close stream failed")
			}
			return
		case <-s.readDone:
			return
		case <-s.closed:
			return
		}
	}
}

// flushQueued sends chunks already queued before Stop.
func (s *liveStream) flushQueued() {
	for {
		select {
		case chunk := <-s.audio:
			if !s.write(chunk) {
				return
			}
		default:
			return
		}
	}
}

func (s *liveStream) write(chunk []byte) bool {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		s.emit(domain.RecognitionEvent{Err: fmt.Errorf("failed to send audio: %w", err)})
		s.closeConn()
		return false
	}
	return true
}

func (s *liveStream) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) && !s.isStopped() {
				s.emit(domain.RecognitionEvent{Err: fmt.Errorf("failed to read provider event: %w", err)})
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.emit(domain.RecognitionEvent{Err: errors.New(message)})
			s.closeConn()
			return
		}

		transcript := extractTranscript(response)
		var (
			batch domain.RecognitionBatch
			ok    bool
		)
		if response.IsFinal || response.SpeechFinal {
			batch, ok = s.log.Final(transcript)
		} else {
			batch, ok = s.log.Partial(transcript)
		}
		if ok {
			s.emit(domain.RecognitionEvent{Batch: batch})
		}
	}
}

func (s *liveStream) isStopped() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

// emit delivers an event to the consumer. Final results wait for room so
// the finalized transcript never skips one; interim results and errors are
// dropped when the consumer is behind.
func (s *liveStream) emit(event domain.RecognitionEvent) {
	if event.Err == nil && event.Batch.HasFinal() {
		select {
		case s.events <- event:
		case <-s.closed:
		}
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Debug().Msg("dropping recognition event; consumer is behind")
	}
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(providerCfg Config, recCfg ports.RecognitionConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("interim_results", fmt.Sprintf("%t", recCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if recCfg.Language != "" {
		query.Set("language", recCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
