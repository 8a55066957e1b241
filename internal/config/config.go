package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	RecognizerDeepgram = "deepgram"
	RecognizerGoogle   = "google"
	RecognizerNone     = "none"
)

var ErrInvalid = errors.New("invalid configuration")

// Config stores runtime configuration resolved from the environment.
type Config struct {
	Session  SessionConfig
	Audio    AudioConfig
	Speech   SpeechConfig
	Deepgram DeepgramConfig
	Google   GoogleConfig
	Backend  BackendConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type SessionConfig struct {
	MaxDuration  time.Duration `env:"SPEAKDRILL_MAX_DURATION" envDefault:"120s"`
	MinDuration  time.Duration `env:"SPEAKDRILL_MIN_DURATION" envDefault:"60s"`
	FlushTimeout time.Duration `env:"SPEAKDRILL_FLUSH_TIMEOUT" envDefault:"500ms"`
	ChunkSize    int           `env:"SPEAKDRILL_AUDIO_CHUNK_SIZE" envDefault:"4096"`
}

type AudioConfig struct {
	RecorderCommand string `env:"SPEAKDRILL_FFMPEG_COMMAND" envDefault:"ffmpeg"`
	InputFormat     string `env:"SPEAKDRILL_AUDIO_INPUT_FORMAT" envDefault:"pulse"`
	InputDevice     string `env:"SPEAKDRILL_AUDIO_INPUT_DEVICE" envDefault:"default"`
	SampleRate      int    `env:"SPEAKDRILL_SAMPLE_RATE" envDefault:"48000"`
	Channels        int    `env:"SPEAKDRILL_CHANNELS" envDefault:"1"`
}

type SpeechConfig struct {
	Recognizer string `env:"SPEAKDRILL_RECOGNIZER" envDefault:"deepgram"`
	Language   string `env:"SPEAKDRILL_LANGUAGE" envDefault:"en-US"`
}

type DeepgramConfig struct {
	APIKey      string `env:"DEEPGRAM_API_KEY"`
	APIBaseURL  string `env:"DEEPGRAM_API_BASE" envDefault:"https://api.deepgram.com/v1"`
	Model       string `env:"DEEPGRAM_MODEL" envDefault:"nova-2"`
	SmartFormat bool   `env:"DEEPGRAM_SMART_FORMAT" envDefault:"true"`
}

type GoogleConfig struct {
	Endpoint string `env:"SPEAKDRILL_GOOGLE_SPEECH_ENDPOINT"`
}

type BackendConfig struct {
	APIURL          string        `env:"SPEAKDRILL_API_URL" envDefault:"http://localhost:8000/api"`
	AnalysisURL     string        `env:"SPEAKDRILL_ANALYSIS_URL" envDefault:"http://localhost:8001/api"`
	AccessToken     string        `env:"SPEAKDRILL_ACCESS_TOKEN"`
	APITimeout      time.Duration `env:"SPEAKDRILL_API_TIMEOUT" envDefault:"30s"`
	AnalysisTimeout time.Duration `env:"SPEAKDRILL_ANALYSIS_TIMEOUT" envDefault:"120s"`
}

type LogConfig struct {
	Level  string `env:"SPEAKDRILL_LOG_LEVEL" envDefault:"info"`
	Format string `env:"SPEAKDRILL_LOG_FORMAT" envDefault:"console"`
}

type MetricsConfig struct {
	Addr string `env:"SPEAKDRILL_METRICS_ADDR"`
}

// Load resolves configuration from environment variables and defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("environment variables are invalid: %w", err)
	}

	cfg.Speech.Recognizer = strings.ToLower(strings.TrimSpace(cfg.Speech.Recognizer))
	cfg.Deepgram.APIKey = strings.TrimSpace(cfg.Deepgram.APIKey)
	cfg.Backend.AccessToken = strings.TrimSpace(cfg.Backend.AccessToken)
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects limits and selections the recorder cannot honor.
func (c Config) Validate() error {
	var errs []error
	if c.Session.MinDuration <= 0 {
		errs = append(errs, fmt.Errorf("SPEAKDRILL_MIN_DURATION must be positive, got %s", c.Session.MinDuration))
	}
	if c.Session.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("SPEAKDRILL_MAX_DURATION must be positive, got %s", c.Session.MaxDuration))
	}
	if c.Session.MaxDuration < c.Session.MinDuration {
		errs = append(errs, fmt.Errorf("SPEAKDRILL_MAX_DURATION (%s) is shorter than SPEAKDRILL_MIN_DURATION (%s)",
			c.Session.MaxDuration, c.Session.MinDuration))
	}
	if c.Session.FlushTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SPEAKDRILL_FLUSH_TIMEOUT must be positive, got %s", c.Session.FlushTimeout))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 {
		errs = append(errs, errors.New("SPEAKDRILL_SAMPLE_RATE and SPEAKDRILL_CHANNELS must be positive"))
	}
	switch c.Speech.Recognizer {
	case RecognizerDeepgram, RecognizerGoogle, RecognizerNone:
	default:
		errs = append(errs, fmt.Errorf("SPEAKDRILL_RECOGNIZER must be deepgram, google or none, got %q", c.Speech.Recognizer))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Seconds converts a duration limit into the whole seconds the recorder counts.
func Seconds(d time.Duration) int {
	return int(d / time.Second)
}
