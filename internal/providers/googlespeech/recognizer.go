// Package googlespeech streams captured audio to Google Cloud
// Speech-to-Text for the live transcript preview.
package googlespeech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
	"speakdrill/internal/recognition"
)

const defaultSampleRate = 48000

var ErrStreamStopped = errors.New("google speech stream already stopped")

// Config selects the Speech-to-Text endpoint. Credentials come from the
// environment (GOOGLE_APPLICATION_CREDENTIALS).
type Config struct {
	Endpoint string
}

type dialFunc func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Recognizer implements ports.SpeechRecognizer with StreamingRecognize.
type Recognizer struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	client *speech.Client
	dial   dialFunc
}

func NewRecognizer(cfg Config, logger zerolog.Logger) *Recognizer {
	r := &Recognizer{cfg: cfg, logger: logger}
	r.dial = r.dialClient
	return r
}

func (r *Recognizer) dialClient(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
	r.mu.Lock()
	if r.client == nil {
		var opts []option.ClientOption
		if endpoint := strings.TrimSpace(r.cfg.Endpoint); endpoint != "" {
			opts = append(opts, option.WithEndpoint(endpoint))
		}
		client, err := speech.NewClient(context.Background(), opts...)
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %w", domain.ErrRecognitionUnavailable, err)
		}
		r.client = client
	}
	client := r.client
	r.mu.Unlock()

	return client.StreamingRecognize(ctx)
}

// Close releases the underlying gRPC client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

func (r *Recognizer) Start(ctx context.Context, cfg ports.RecognitionConfig) (ports.RecognitionStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := r.dial(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(cfg),
		},
	}); err != nil {
		_ = stream.CloseSend()
		cancel()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}

	s := &liveStream{
		stream:   stream,
		ctx:      streamCtx,
		cancel:   cancel,
		events:   make(chan domain.RecognitionEvent, 64),
		audio:    make(chan []byte, 32),
		stopping: make(chan struct{}),
		logger:   r.logger,
	}
	go s.sendLoop()
	go s.recvLoop()
	return s, nil
}

func streamingConfig(cfg ports.RecognitionConfig) *speechpb.StreamingRecognitionConfig {
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	sampleRate := cfg.SampleRate
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		sampleRate = defaultSampleRate
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_WEBM_OPUS,
			SampleRateHertz:            int32(sampleRate),
			AudioChannelCount:          int32(channels),
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		InterimResults:  cfg.InterimResults,
		SingleUtterance: !cfg.Continuous,
	}
}

// liveStream owns one StreamingRecognize call. Only sendLoop touches the
// send side of the gRPC stream, so Stop never waits on a stalled Send.
type liveStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	cancel context.CancelFunc
	events chan domain.RecognitionEvent
	audio  chan []byte
	log    recognition.ResultLog
	logger zerolog.Logger

	stopping chan struct{}
	stopOnce sync.Once
}

func (s *liveStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	select {
	case <-s.stopping:
		return ErrStreamStopped
	default:
	}

	select {
	case s.audio <- chunk:
		return nil
	case <-s.stopping:
		return ErrStreamStopped
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *liveStream) Events() <-chan domain.RecognitionEvent {
	return s.events
}

// Stop half-closes the stream once queued audio is sent. Results keep
// arriving until the service finishes.
func (s *liveStream) Stop() error {
	err := ErrStreamStopped
	s.stopOnce.Do(func() {
		close(s.stopping)
		err = nil
	})
	return err
}

func (s *liveStream) sendLoop() {
	for {
		select {
		case chunk := <-s.audio:
			if !s.send(chunk) {
				return
			}
		case <-s.stopping:
			for drained := false; !drained; {
				select {
				case chunk := <-s.audio:
					if !s.send(chunk) {
						return
					}
				default:
					drained = true
				}
			}
			if err := s.stream.CloseSend(); err != nil {
				s.logger.Debug().Err(err).Msg("closing speech stream failed")
			}
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *liveStream) send(chunk []byte) bool {
	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	})
	if err != nil {
		// Recv reports the underlying status.
		s.logger.Debug().Err(err).Msg("sending audio to speech stream failed")
		return false
	}
	return true
}

func (s *liveStream) recvLoop() {
	defer close(s.events)
	defer s.cancel()

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return
			}
			s.emit(domain.RecognitionEvent{Err: fmt.Errorf("speech recognition stream: %w", err)})
			return
		}
		if st := resp.GetError(); st != nil && st.GetCode() != 0 {
			s.emit(domain.RecognitionEvent{Err: fmt.Errorf("speech recognition: %s", st.GetMessage())})
			continue
		}

		for _, result := range resp.GetResults() {
			alternatives := result.GetAlternatives()
			if len(alternatives) == 0 {
				continue
			}
			var (
				batch domain.RecognitionBatch
				ok    bool
			)
			if result.GetIsFinal() {
				batch, ok = s.log.Final(alternatives[0].GetTranscript())
			} else {
				batch, ok = s.log.Partial(alternatives[0].GetTranscript())
			}
			if ok {
				s.emit(domain.RecognitionEvent{Batch: batch})
			}
		}
	}
}

// emit waits for room only for final results; interim results and errors
// are dropped when the consumer is behind.
func (s *liveStream) emit(event domain.RecognitionEvent) {
	if event.Err == nil && event.Batch.HasFinal() {
		select {
		case s.events <- event:
		case <-s.ctx.Done():
		}
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Debug().Msg("dropping recognition event; consumer is behind")
	}
}
