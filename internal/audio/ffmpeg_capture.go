package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

const (
	defaultStartupGrace = 250 * time.Millisecond
	defaultStopGrace    = 1200 * time.Millisecond
)

// FFMPEGCapture records the microphone with ffmpeg and streams it as
// WebM/Opus on stdout.
type FFMPEGCapture struct {
	command      string
	startupGrace time.Duration
	stopGrace    time.Duration
	logger       zerolog.Logger
}

func NewFFMPEGCapture(command string, logger zerolog.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{
		command:      command,
		startupGrace: defaultStartupGrace,
		stopGrace:    defaultStopGrace,
		logger:       logger,
	}
}

func captureArgs(cfg ports.CaptureConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "libopus",
		"-f", "webm",
		"-",
	}
}

// Acquire opens the microphone. Any failure to get a running encoder is
// reported as domain.ErrPermissionDenied.
func (c *FFMPEGCapture) Acquire(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureStream, error) {
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %w", domain.ErrPermissionDenied, err)
	}
	_ = stdoutW.Close()

	s := &ffmpegStream{
		stdout:    stdout,
		stderr:    &stderr,
		process:   cmd.Process,
		exited:    make(chan struct{}),
		stopGrace: c.stopGrace,
	}
	go func() {
		s.exitErr = cmd.Wait()
		close(s.exited)
	}()

	select {
	case <-s.exited:
		_ = stdout.Close()
		if s.exitErr != nil {
			return nil, fmt.Errorf("%w: ffmpeg exited before capture started: %w: %s",
				domain.ErrPermissionDenied, s.exitErr, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, fmt.Errorf("%w: ffmpeg exited before capture started", domain.ErrPermissionDenied)
	case <-time.After(c.startupGrace):
	}

	c.logger.Debug().Int("pid", cmd.Process.Pid).Str("format", cfg.InputFormat).Msg("microphone capture started")
	return s, nil
}

// ffmpegStream reads encoder output directly from the pipe, so the final
// WebM cluster written after Stop is still delivered before io.EOF.
type ffmpegStream struct {
	stdout *os.File
	stderr *bytes.Buffer

	process   *os.Process
	exited    chan struct{}
	exitErr   error
	stopGrace time.Duration

	stopOnce  sync.Once
	stopErr   error
	closeOnce sync.Once
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Stop interrupts ffmpeg so it finalizes the container, killing it if it
// does not exit within the grace period.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		select {
		case <-s.exited:
			s.stopErr = normalizeStopErr(s.exitErr)
			return
		default:
		}

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case <-s.exited:
		case <-time.After(s.stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			<-s.exited
		}

		s.stopErr = normalizeStopErr(s.exitErr)
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})

	return s.stopErr
}

// Close kills ffmpeg if it is still running and releases the pipe.
func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		select {
		case <-s.exited:
		default:
			if s.process != nil {
				_ = s.process.Kill()
			}
		}
		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			err = closeErr
		}
	})
	return err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
