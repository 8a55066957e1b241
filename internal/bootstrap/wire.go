package bootstrap

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"

	"speakdrill/internal/audio"
	"speakdrill/internal/clock"
	"speakdrill/internal/config"
	"speakdrill/internal/observability/logging"
	"speakdrill/internal/observability/metrics"
	"speakdrill/internal/ports"
	"speakdrill/internal/providers/deepgram"
	"speakdrill/internal/providers/googlespeech"
	"speakdrill/internal/recognition"
	"speakdrill/internal/speakapi"
	"speakdrill/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.RecordingController
	Submitter  *usecase.Submitter
	Store      ports.ProgressStore
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Config     config.Config

	recognizer ports.SpeechRecognizer
}

// Close releases long-lived provider clients.
func (s Services) Close() error {
	if closer, ok := s.recognizer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Build loads configuration from the environment and wires all backend
// dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, eventSink)
}

// BuildWithConfig wires the runtime graph from an already loaded config.
func BuildWithConfig(cfg config.Config, eventSink ports.EventSink) (Services, error) {
	injector := NewInjector(cfg, eventSink)

	controller, err := do.Invoke[*usecase.RecordingController](injector)
	if err != nil {
		return Services{}, err
	}
	submitter, err := do.Invoke[*usecase.Submitter](injector)
	if err != nil {
		return Services{}, err
	}

	return Services{
		Controller: controller,
		Submitter:  submitter,
		Store:      do.MustInvoke[ports.ProgressStore](injector),
		Metrics:    do.MustInvoke[*metrics.Metrics](injector),
		Registry:   do.MustInvoke[*prometheus.Registry](injector),
		Config:     cfg,
		recognizer: do.MustInvoke[ports.SpeechRecognizer](injector),
	}, nil
}

// NewInjector registers every provider. Services are built lazily on first
// invocation.
func NewInjector(cfg config.Config, eventSink ports.EventSink) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, eventSink)
	do.Provide(injector, func(do.Injector) (*prometheus.Registry, error) {
		return prometheus.NewRegistry(), nil
	})
	do.Provide(injector, func(i do.Injector) (*metrics.Metrics, error) {
		return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
	})
	do.Provide(injector, func(do.Injector) (ports.Clock, error) {
		return clock.System{}, nil
	})
	do.Provide(injector, func(i do.Injector) (ports.CaptureSource, error) {
		c := do.MustInvoke[config.Config](i)
		return audio.NewFFMPEGCapture(c.Audio.RecorderCommand, logging.WithComponent("capture")), nil
	})
	do.Provide(injector, func(i do.Injector) (ports.SpeechRecognizer, error) {
		return newRecognizer(do.MustInvoke[config.Config](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*speakapi.Client, error) {
		c := do.MustInvoke[config.Config](i)
		return speakapi.NewClient(speakapi.Config{
			APIURL:          c.Backend.APIURL,
			AnalysisURL:     c.Backend.AnalysisURL,
			AccessToken:     c.Backend.AccessToken,
			APITimeout:      c.Backend.APITimeout,
			AnalysisTimeout: c.Backend.AnalysisTimeout,
		}, logging.WithComponent("speakapi")), nil
	})
	do.Provide(injector, func(i do.Injector) (ports.ProgressStore, error) {
		return do.MustInvoke[*speakapi.Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (ports.Analyzer, error) {
		return do.MustInvoke[*speakapi.Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (*usecase.RecordingController, error) {
		c := do.MustInvoke[config.Config](i)
		return usecase.NewRecordingController(
			do.MustInvoke[ports.CaptureSource](i),
			do.MustInvoke[ports.SpeechRecognizer](i),
			do.MustInvoke[ports.Clock](i),
			do.MustInvoke[ports.EventSink](i),
			do.MustInvoke[*metrics.Metrics](i),
			logging.WithComponent("recorder"),
			controllerConfig(c),
		)
	})
	do.Provide(injector, func(i do.Injector) (*usecase.Submitter, error) {
		return usecase.NewSubmitter(
			do.MustInvoke[ports.Analyzer](i),
			do.MustInvoke[ports.ProgressStore](i),
			do.MustInvoke[*metrics.Metrics](i),
			logging.WithComponent("submitter"),
		), nil
	})

	return injector
}

func newRecognizer(cfg config.Config) ports.SpeechRecognizer {
	switch cfg.Speech.Recognizer {
	case config.RecognizerGoogle:
		return googlespeech.NewRecognizer(googlespeech.Config{Endpoint: cfg.Google.Endpoint}, logging.WithComponent("googlespeech"))
	case config.RecognizerNone:
		return recognition.Unavailable{}
	default:
		return deepgram.NewRecognizer(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, logging.WithComponent("deepgram"))
	}
}

func controllerConfig(cfg config.Config) usecase.Config {
	return usecase.Config{
		Capture: ports.CaptureConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Recognition: ports.RecognitionConfig{
			Language:   cfg.Speech.Language,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		},
		MaxDuration:  config.Seconds(cfg.Session.MaxDuration),
		MinDuration:  config.Seconds(cfg.Session.MinDuration),
		FlushTimeout: cfg.Session.FlushTimeout,
		ChunkSize:    cfg.Session.ChunkSize,
	}
}
