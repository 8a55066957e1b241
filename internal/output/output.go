package output

import (
	"fmt"
	"io"
	"strings"

	"speakdrill/internal/domain"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) LevelIntro(level domain.Level, mode domain.PracticeMode) {
	if level.Topic == "" {
		fmt.Fprintf(f.w, "🎯 Level %d\n", level.ID)
	} else {
		fmt.Fprintf(f.w, "🎯 Level %d: %s\n", level.ID, level.Topic)
	}
	if mode == domain.PracticeModeRead && level.Text != "" {
		fmt.Fprintf(f.w, "\n%s\n\n", level.Text)
	}
}

func (f *Formatter) RecordingStarted(minSeconds, maxSeconds int) {
	fmt.Fprintf(f.w, "🎙️  Recording. Speak for at least %s (auto-stop at %s). Press Enter to stop.\n",
		domain.FormatClock(minSeconds), domain.FormatClock(maxSeconds))
}

// Elapsed redraws the clock in place.
func (f *Formatter) Elapsed(seconds, maxSeconds int) {
	fmt.Fprintf(f.w, "\r⏺️  %s / %s", domain.FormatClock(seconds), domain.FormatClock(maxSeconds))
}

func (f *Formatter) RecordingStopped(seconds int, reason domain.StopReason) {
	switch reason {
	case domain.StopReasonAutoMax:
		fmt.Fprintf(f.w, "\n⏹️  Time is up (%s)\n", domain.FormatClock(seconds))
	default:
		fmt.Fprintf(f.w, "\n⏹️  Recording stopped (%s)\n", domain.FormatClock(seconds))
	}
}

func (f *Formatter) Transcript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	fmt.Fprintf(f.w, "📝 %s\n", text)
}

func (f *Formatter) RecordingSaved(path string, size int) {
	fmt.Fprintf(f.w, "💾 Recording saved: %s (%d bytes)\n", path, size)
}

func (f *Formatter) Analyzing() {
	fmt.Fprintf(f.w, "🤖 Analyzing your answer...\n")
}

func (f *Formatter) AnalysisResult(a domain.Analysis, xp int) {
	fmt.Fprintf(f.w, "\n📊 Scores\n")
	fmt.Fprintf(f.w, "  Grammar:         %4.1f\n", a.GrammarScore)
	fmt.Fprintf(f.w, "  Vocabulary:      %4.1f\n", a.VocabularyScore)
	fmt.Fprintf(f.w, "  Fluency:         %4.1f\n", a.FluencyScore)
	fmt.Fprintf(f.w, "  Topic relevance: %4.1f\n", a.TopicRelevanceScore)
	if feedback := strings.TrimSpace(a.Feedback); feedback != "" {
		fmt.Fprintf(f.w, "\n💬 %s\n", feedback)
	}
	fmt.Fprintf(f.w, "\n⭐ +%d XP\n", xp)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) LevelListHeader(progress domain.Progress) {
	fmt.Fprintf(f.w, "📚 Levels (%d XP):\n\n", progress.XP)
}

func (f *Formatter) LevelListItem(status domain.LevelStatus) {
	marker := "🔒"
	if status.Completed {
		marker = "✅"
	} else if status.Unlocked {
		marker = "▶️ "
	}
	difficulty := ""
	if status.Difficulty != "" {
		difficulty = " [" + status.Difficulty + "]"
	}
	fmt.Fprintf(f.w, "  %s %2d. %s%s\n", marker, status.ID, status.Topic, difficulty)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}
