package cli

import (
	"io"
	"sync"

	"speakdrill/internal/domain"
	"speakdrill/internal/output"
)

// TerminalSink prints recording callbacks and hands the finished capture
// to the waiting command.
type TerminalSink struct {
	formatter  *output.Formatter
	maxSeconds int

	mu         sync.Mutex
	transcript string

	complete chan domain.Capture
}

func NewTerminalSink(w io.Writer, maxSeconds int) *TerminalSink {
	return &TerminalSink{
		formatter:  output.NewFormatter(w),
		maxSeconds: maxSeconds,
		complete:   make(chan domain.Capture, 1),
	}
}

func (s *TerminalSink) RecordingStateChanged(recording bool) {}

func (s *TerminalSink) ElapsedChanged(seconds int) {
	s.formatter.Elapsed(seconds, s.maxSeconds)
}

func (s *TerminalSink) TranscriptUpdated(text string) {
	s.mu.Lock()
	s.transcript = text
	s.mu.Unlock()
}

// Transcript returns the latest live transcript preview.
func (s *TerminalSink) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

func (s *TerminalSink) RecordingComplete(capture domain.Capture) {
	select {
	case s.complete <- capture:
	default:
	}
}

// Completions delivers each finished capture.
func (s *TerminalSink) Completions() <-chan domain.Capture {
	return s.complete
}

func (s *TerminalSink) Alert(code domain.ErrorCode, message string) {
	switch code {
	case domain.ErrorCodePermission:
		// Start returns the same failure to the caller.
		return
	case domain.ErrorCodePrematureStop:
		s.formatter.Warning("\n" + message)
	default:
		s.formatter.Error("\n" + message)
	}
}
