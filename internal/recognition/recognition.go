// Package recognition holds recognizer helpers shared by the speech
// providers.
package recognition

import (
	"context"
	"strings"
	"sync"

	"speakdrill/internal/domain"
	"speakdrill/internal/ports"
)

// Unavailable is the recognizer used on hosts without speech recognition.
// Recording proceeds without a live transcript.
type Unavailable struct{}

func (Unavailable) Start(context.Context, ports.RecognitionConfig) (ports.RecognitionStream, error) {
	return nil, domain.ErrRecognitionUnavailable
}

// ResultLog turns segment-style provider updates into the indexed result
// list a continuous recognizer reports. The open tail result is replaced by
// each partial and sealed by a final.
type ResultLog struct {
	mu      sync.Mutex
	results []domain.RecognitionResult
}

// Partial replaces the open tail result with text.
func (l *ResultLog) Partial(text string) (domain.RecognitionBatch, bool) {
	return l.update(text, false)
}

// Final seals the open tail result with text.
func (l *ResultLog) Final(text string) (domain.RecognitionBatch, bool) {
	return l.update(text, true)
}

func (l *ResultLog) update(text string, final bool) (domain.RecognitionBatch, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.RecognitionBatch{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	result := domain.RecognitionResult{Transcript: text, IsFinal: final}
	n := len(l.results)
	if n > 0 && !l.results[n-1].IsFinal {
		l.results[n-1] = result
	} else {
		l.results = append(l.results, result)
		n++
	}

	snapshot := make([]domain.RecognitionResult, n)
	copy(snapshot, l.results)
	return domain.RecognitionBatch{ResultIndex: n - 1, Results: snapshot}, true
}
