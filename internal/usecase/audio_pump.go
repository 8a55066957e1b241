package usecase

import (
	"errors"
	"fmt"
	"io"

	"speakdrill/internal/ports"
)

// recognizerQueueSize bounds how far the recognizer's copy of the audio may
// lag behind capture before chunks are dropped for it.
const recognizerQueueSize = 64

// pumpCaptureChunks forwards encoded capture bytes to the session inbox in
// read order and tees them into the recognizer when one is running. The
// read loop never waits on the recognizer.
func pumpCaptureChunks(
	capture ports.CaptureStream,
	recognition ports.RecognitionStream,
	chunkSize int,
	session *activeSession,
) {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	var feed chan []byte
	if recognition != nil {
		feed = make(chan []byte, recognizerQueueSize)
		go feedRecognizer(recognition, feed, session)
		defer close(feed)
	}

	dropped := 0
	buf := make([]byte, chunkSize)
	for {
		n, err := capture.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if !session.post(chunkEvent{data: chunk}) {
				return
			}
			if feed != nil {
				select {
				case feed <- chunk:
				default:
					if dropped == 0 {
						session.logger.Warn().Msg("recognizer is behind; skipping audio for the live transcript")
					}
					dropped++
				}
			}
		}
		if err != nil {
			if dropped > 0 {
				session.logger.Debug().Int("dropped", dropped).Msg("chunks skipped for the recognizer")
			}
			if errors.Is(err, io.EOF) {
				err = nil
			} else {
				err = fmt.Errorf("audio capture error: %w", err)
			}
			session.post(captureDrainedEvent{err: err})
			return
		}
	}
}

// feedRecognizer sends queued chunks to the recognizer until the queue
// closes. After the first send error the rest are discarded.
func feedRecognizer(recognition ports.RecognitionStream, feed <-chan []byte, session *activeSession) {
	feeding := true
	for chunk := range feed {
		if !feeding {
			continue
		}
		if err := recognition.SendAudio(chunk); err != nil {
			feeding = false
			session.logger.Debug().Err(err).Msg("recognizer stopped accepting audio")
		}
	}
}

// forwardTicks turns ticker ticks into inbox events until the session ends.
func forwardTicks(ticker ports.Ticker, session *activeSession) {
	for {
		select {
		case <-ticker.C():
			if !session.post(tickEvent{}) {
				return
			}
		case <-session.done:
			return
		}
	}
}

// consumeRecognitionEvents forwards recognizer output until its channel closes.
func consumeRecognitionEvents(stream ports.RecognitionStream, session *activeSession) {
	for {
		select {
		case event, ok := <-stream.Events():
			if !ok {
				return
			}
			if !session.post(recognitionEvent{event: event}) {
				return
			}
		case <-session.done:
			return
		}
	}
}
