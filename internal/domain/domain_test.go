package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestExperiencePoints(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   Analysis
		want int
	}{
		{name: "perfect scores cap at 25", in: Analysis{GrammarScore: 10, VocabularyScore: 10, FluencyScore: 10, TopicRelevanceScore: 10}, want: 25},
		{name: "average rounds half up", in: Analysis{GrammarScore: 5, VocabularyScore: 5, FluencyScore: 5, TopicRelevanceScore: 5}, want: 13},
		{name: "mixed", in: Analysis{GrammarScore: 8, VocabularyScore: 6, FluencyScore: 7, TopicRelevanceScore: 9}, want: 19},
		{name: "zero", in: Analysis{}, want: 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExperiencePoints(tc.in); got != tc.want {
				t.Fatalf("unexpected xp: got %d want %d", got, tc.want)
			}
		})
	}
}

func TestIsLevelUnlocked(t *testing.T) {
	t.Parallel()

	if IsLevelUnlocked(nil, 1) {
		t.Fatalf("expected locked without progress")
	}

	progress := &Progress{CompletedLevels: []int{1, 2}}
	if !IsLevelUnlocked(progress, 1) {
		t.Fatalf("expected level 1 unlocked")
	}
	if !IsLevelUnlocked(progress, 3) {
		t.Fatalf("expected level 3 unlocked after level 2")
	}
	if IsLevelUnlocked(progress, 4) {
		t.Fatalf("expected level 4 locked")
	}
}

func TestLevelStatuses(t *testing.T) {
	t.Parallel()

	levels := []Level{{ID: 1}, {ID: 2}, {ID: 3}}
	statuses := LevelStatuses(levels, &Progress{CompletedLevels: []int{1}})
	if len(statuses) != 3 {
		t.Fatalf("expected three statuses, got %d", len(statuses))
	}
	if !statuses[0].Completed || !statuses[0].Unlocked {
		t.Fatalf("expected level 1 completed and unlocked: %+v", statuses[0])
	}
	if statuses[1].Completed || !statuses[1].Unlocked {
		t.Fatalf("expected level 2 unlocked only: %+v", statuses[1])
	}
	if statuses[2].Unlocked {
		t.Fatalf("expected level 3 locked: %+v", statuses[2])
	}

	for _, status := range LevelStatuses(levels, nil) {
		if status.Unlocked || status.Completed {
			t.Fatalf("expected everything locked without progress: %+v", status)
		}
	}
}

func TestPrematureStopError(t *testing.T) {
	t.Parallel()

	var err error = &PrematureStopError{Elapsed: 30, Minimum: 60}
	var premature *PrematureStopError
	if !errors.As(err, &premature) {
		t.Fatalf("expected PrematureStopError")
	}
	if premature.Remaining() != 30 {
		t.Fatalf("unexpected remaining: %d", premature.Remaining())
	}
	msg := premature.Message()
	if !strings.Contains(msg, "Current: 00:30") || !strings.Contains(msg, "00:30 more") {
		t.Fatalf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, "at least 1 minute(s)") {
		t.Fatalf("unexpected minimum in message: %q", msg)
	}
}

func TestCapturePayloadAndEmpty(t *testing.T) {
	t.Parallel()

	c := Capture{Chunks: [][]byte{[]byte("ab"), nil, []byte("c")}}
	if c.Empty() {
		t.Fatalf("expected non-empty capture")
	}
	if got := string(c.Payload()); got != "abc" {
		t.Fatalf("unexpected payload: %q", got)
	}
	if !(Capture{Chunks: [][]byte{nil, {}}}).Empty() {
		t.Fatalf("expected capture of empty chunks to be empty")
	}
}

func TestFormatClock(t *testing.T) {
	t.Parallel()

	if got := FormatClock(125); got != "02:05" {
		t.Fatalf("unexpected clock: %q", got)
	}
	if got := FormatClock(-3); got != "00:00" {
		t.Fatalf("unexpected clock: %q", got)
	}
}

func TestRecognitionBatchHasFinal(t *testing.T) {
	t.Parallel()

	sealed := RecognitionResult{Transcript: "a", IsFinal: true}
	pending := RecognitionResult{Transcript: "b"}
	tests := []struct {
		name  string
		batch RecognitionBatch
		want  bool
	}{
		{name: "empty", batch: RecognitionBatch{}, want: false},
		{name: "interim only", batch: RecognitionBatch{Results: []RecognitionResult{pending}}, want: false},
		{name: "final at index", batch: RecognitionBatch{Results: []RecognitionResult{sealed}}, want: true},
		{name: "final before index", batch: RecognitionBatch{ResultIndex: 1, Results: []RecognitionResult{sealed, pending}}, want: false},
		{name: "index out of range", batch: RecognitionBatch{ResultIndex: 3, Results: []RecognitionResult{sealed}}, want: false},
	}
	for _, tt := range tests {
		if got := tt.batch.HasFinal(); got != tt.want {
			t.Fatalf("%s: HasFinal() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
