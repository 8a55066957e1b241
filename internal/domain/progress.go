package domain

import (
	"math"
	"slices"
)

// PracticeMode selects which analysis endpoint a capture is submitted to.
type PracticeMode string

const (
	PracticeModeContinue PracticeMode = "continue"
	PracticeModeRead     PracticeMode = "read"
)

// Valid reports whether the mode is known.
func (m PracticeMode) Valid() bool {
	return m == PracticeModeContinue || m == PracticeModeRead
}

// MaxExperiencePerExercise caps the XP a single submission can earn.
const MaxExperiencePerExercise = 25

// Level is a practice topic. Text is the passage used in read mode.
type Level struct {
	ID         int    `json:"id"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Text       string `json:"text"`
	TextGerman string `json:"text_german,omitempty"`
}

// Progress is the user's XP and completed levels as reported by the backend.
type Progress struct {
	XP              int   `json:"xp"`
	CompletedLevels []int `json:"completed_levels"`
}

// Analysis is the speech analysis returned by the AI service.
type Analysis struct {
	Transcript          string  `json:"transcript"`
	GrammarScore        float64 `json:"grammar_score"`
	VocabularyScore     float64 `json:"vocabulary_score"`
	FluencyScore        float64 `json:"fluency_score"`
	TopicRelevanceScore float64 `json:"topic_relevance_score"`
	Feedback            string  `json:"feedback"`
}

// Feedback is persisted after a successful analysis.
type Feedback struct {
	LevelID             int     `json:"level_id"`
	Transcript          string  `json:"transcript"`
	GrammarScore        float64 `json:"grammar_score"`
	VocabularyScore     float64 `json:"vocabulary_score"`
	FluencyScore        float64 `json:"fluency_score"`
	TopicRelevanceScore float64 `json:"topic_relevance_score"`
	FeedbackText        string  `json:"feedback_text"`
	XPEarned            int     `json:"xp_earned"`
}

// ExperiencePoints converts analysis scores (0-10) into XP.
func ExperiencePoints(a Analysis) int {
	avg := (a.GrammarScore + a.VocabularyScore + a.FluencyScore + a.TopicRelevanceScore) / 4
	xp := int(math.Floor(avg*2.5 + 0.5))
	if xp < 0 {
		return 0
	}
	return min(xp, MaxExperiencePerExercise)
}

// IsLevelUnlocked reports whether a level can be attempted. The first level is
// always open; any other level opens once its predecessor is completed.
func IsLevelUnlocked(progress *Progress, levelID int) bool {
	if progress == nil {
		return false
	}
	if levelID == 1 {
		return true
	}
	return slices.Contains(progress.CompletedLevels, levelID-1)
}

// LevelStatus is a level annotated for the current user.
type LevelStatus struct {
	Level
	Unlocked  bool `json:"unlocked"`
	Completed bool `json:"completed"`
}

// LevelStatuses annotates levels with unlock and completion state.
func LevelStatuses(levels []Level, progress *Progress) []LevelStatus {
	out := make([]LevelStatus, 0, len(levels))
	for _, level := range levels {
		completed := progress != nil && slices.Contains(progress.CompletedLevels, level.ID)
		out = append(out, LevelStatus{
			Level:     level,
			Unlocked:  IsLevelUnlocked(progress, level.ID),
			Completed: completed,
		})
	}
	return out
}
