package output

import (
	"bytes"
	"strings"
	"testing"

	"speakdrill/internal/domain"
)

func TestElapsedRedrawsInPlace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewFormatter(&buf).Elapsed(65, 120)
	if buf.String() != "\r⏺️  01:05 / 02:00" {
		t.Fatalf("unexpected clock line: %q", buf.String())
	}
}

func TestRecordingStoppedByReason(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.RecordingStopped(120, domain.StopReasonAutoMax)
	f.RecordingStopped(75, domain.StopReasonManual)

	out := buf.String()
	if !strings.Contains(out, "Time is up (02:00)") {
		t.Fatalf("expected auto-stop line: %q", out)
	}
	if !strings.Contains(out, "Recording stopped (01:15)") {
		t.Fatalf("expected manual stop line: %q", out)
	}
}

func TestTranscriptSkipsBlank(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewFormatter(&buf).Transcript("   ")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestLevelListItemMarkers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := NewFormatter(&buf)
	f.LevelListItem(domain.LevelStatus{Level: domain.Level{ID: 1, Topic: "Family", Difficulty: "easy"}, Unlocked: true, Completed: true})
	f.LevelListItem(domain.LevelStatus{Level: domain.Level{ID: 2, Topic: "Travel"}, Unlocked: true})
	f.LevelListItem(domain.LevelStatus{Level: domain.Level{ID: 3, Topic: "Work"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected three lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "✅") || !strings.Contains(lines[0], "Family [easy]") {
		t.Fatalf("unexpected completed line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "▶️") {
		t.Fatalf("unexpected unlocked line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "🔒") {
		t.Fatalf("unexpected locked line: %q", lines[2])
	}
}

func TestAnalysisResult(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewFormatter(&buf).AnalysisResult(domain.Analysis{GrammarScore: 8, Feedback: "Nice pacing."}, 20)

	out := buf.String()
	for _, want := range []string{"Grammar:          8.0", "💬 Nice pacing.", "+20 XP"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestLevelIntroShowsPassageOnlyWhenReading(t *testing.T) {
	t.Parallel()

	level := domain.Level{ID: 4, Topic: "Weather", Text: "It rained all week."}

	var buf bytes.Buffer
	NewFormatter(&buf).LevelIntro(level, domain.PracticeModeContinue)
	if strings.Contains(buf.String(), "rained") {
		t.Fatalf("continue mode should not print the passage: %q", buf.String())
	}

	buf.Reset()
	NewFormatter(&buf).LevelIntro(level, domain.PracticeModeRead)
	if !strings.Contains(buf.String(), "It rained all week.") {
		t.Fatalf("read mode should print the passage: %q", buf.String())
	}
}
