package usecase

import (
	"strings"

	"speakdrill/internal/domain"
)

// transcriptBuffer accumulates finalized recognition text for one session.
// Only results with an index above lastFinalIndex are appended, so a final
// result reported again in a later batch is applied once.
type transcriptBuffer struct {
	finalized      strings.Builder
	lastFinalIndex int
	interim        string
}

func newTranscriptBuffer() *transcriptBuffer {
	return &transcriptBuffer{lastFinalIndex: -1}
}

// Apply folds a result batch into the buffer and returns the display text.
func (b *transcriptBuffer) Apply(batch domain.RecognitionBatch) string {
	start := batch.ResultIndex
	if start < 0 {
		start = 0
	}

	var interim strings.Builder
	for i := start; i < len(batch.Results); i++ {
		result := batch.Results[i]
		if !result.IsFinal {
			interim.WriteString(result.Transcript)
			continue
		}
		if i > b.lastFinalIndex {
			b.finalized.WriteString(result.Transcript)
			b.finalized.WriteString(" ")
			b.lastFinalIndex = i
		}
	}
	b.interim = interim.String()

	return b.Text()
}

// Text is the finalized text followed by the latest interim preview.
func (b *transcriptBuffer) Text() string {
	return strings.TrimSpace(b.finalized.String() + b.interim)
}

// Finalized is the confirmed text only.
func (b *transcriptBuffer) Finalized() string {
	return strings.TrimSpace(b.finalized.String())
}
