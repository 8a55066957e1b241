package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the microphone cannot be acquired,
	// either because access was refused or no input device exists.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrRecognitionUnavailable marks a host without live speech recognition.
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")

	// ErrEmptyCapture is returned when a finished session holds no audio.
	ErrEmptyCapture = errors.New("no audio recorded")
)

// PrematureStopError rejects a stop request made before the minimum duration.
type PrematureStopError struct {
	Elapsed int
	Minimum int
}

// Remaining returns the seconds still required before a stop is accepted.
func (e *PrematureStopError) Remaining() int {
	if e.Minimum <= e.Elapsed {
		return 0
	}
	return e.Minimum - e.Elapsed
}

func (e *PrematureStopError) Error() string {
	return fmt.Sprintf("recording too short: %ds remaining", e.Remaining())
}

// Message is the user-facing guidance for a premature stop.
func (e *PrematureStopError) Message() string {
	minutes := (e.Minimum + 59) / 60
	return fmt.Sprintf("Please record for at least %d minute(s). Current: %s. Keep recording for %s more",
		minutes, FormatClock(e.Elapsed), FormatClock(e.Remaining()))
}

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
