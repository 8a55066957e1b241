package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

// sessionEvent is anything posted to a session's inbox.
type sessionEvent interface{}

type chunkEvent struct{ data []byte }

// captureDrainedEvent is posted once the capture reader hits EOF or fails.
type captureDrainedEvent struct{ err error }

type tickEvent struct{}

type recognitionEvent struct{ event domain.RecognitionEvent }

type flushDeadlineEvent struct{}

type stopRequest struct{ reply chan error }

type abortRequest struct{ reply chan error }

// activeSession is one recording attempt. All fields below the inbox are
// owned by the controller's event loop; only the snapshot is shared.
type activeSession struct {
	ctx    context.Context
	cancel func()
	inbox  chan sessionEvent
	done   chan struct{}
	logger zerolog.Logger

	capture     ports.CaptureStream
	recognition ports.RecognitionStream
	ticker      ports.Ticker

	status     domain.SessionStatus
	elapsed    int
	chunks     [][]byte
	transcript *transcriptBuffer
	drained    bool
	reason     domain.StopReason

	stateMu      sync.Mutex
	snapshot     domain.SessionStatus
	snapshotSecs int
}

// post delivers an event to the loop unless the session has finished.
func (s *activeSession) post(ev sessionEvent) bool {
	select {
	case s.inbox <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *activeSession) publish() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.snapshot = s.status
	s.snapshotSecs = s.elapsed
}

func (s *activeSession) getState() (domain.SessionStatus, int) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.snapshot, s.snapshotSecs
}
