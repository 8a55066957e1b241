package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"speakdrill/internal/domain"
	"speakdrill/internal/observability/metrics"
	"speakdrill/internal/ports"
)

// RecordingFilename is the upload name of an assembled capture.
const RecordingFilename = "recording.webm"

var (
	ErrUnknownMode  = errors.New("unknown practice mode")
	ErrSaveFeedback = errors.New("save feedback")
)

// SubmitRequest pairs a finished capture with the level it was recorded for.
type SubmitRequest struct {
	Capture domain.Capture
	Level   domain.Level
	Mode    domain.PracticeMode
}

// SubmitResult is the analysis outcome shown to the user.
type SubmitResult struct {
	Analysis domain.Analysis `json:"analysis"`
	XP       int             `json:"xp"`
	LevelID  int             `json:"levelId"`
}

// Submitter hands finished captures to the analysis service and records the
// resulting feedback and experience points.
type Submitter struct {
	analyzer ports.Analyzer
	store    ports.ProgressStore
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewSubmitter(analyzer ports.Analyzer, store ports.ProgressStore, m *metrics.Metrics, logger zerolog.Logger) *Submitter {
	return &Submitter{analyzer: analyzer, store: store, metrics: m, logger: logger}
}

// Submit analyzes a capture. A capture without audio fails with
// domain.ErrEmptyCapture before anything is sent.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if !req.Mode.Valid() {
		return SubmitResult{}, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if req.Capture.Empty() {
		s.metrics.RecordEmptyCapture()
		s.metrics.RecordSubmission(string(req.Mode), "empty", 0)
		return SubmitResult{}, domain.ErrEmptyCapture
	}

	contentType := req.Capture.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeWebM
	}

	analysis, err := s.analyzer.Analyze(ctx, ports.AnalysisRequest{
		Audio:       req.Capture.Payload(),
		Filename:    RecordingFilename,
		ContentType: contentType,
		Topic:       req.Level.Topic,
		Mode:        req.Mode,
	})
	if err != nil {
		s.metrics.RecordSubmission(string(req.Mode), "analysis_failed", 0)
		s.logger.Error().Err(err).Int("level", req.Level.ID).Msg("speech analysis failed")
		return SubmitResult{}, fmt.Errorf("analyze speech: %w", err)
	}

	xp := domain.ExperiencePoints(analysis)
	feedback := domain.Feedback{
		LevelID:             req.Level.ID,
		Transcript:          analysis.Transcript,
		GrammarScore:        analysis.GrammarScore,
		VocabularyScore:     analysis.VocabularyScore,
		FluencyScore:        analysis.FluencyScore,
		TopicRelevanceScore: analysis.TopicRelevanceScore,
		FeedbackText:        analysis.Feedback,
		XPEarned:            xp,
	}
	if err := s.store.SaveFeedback(ctx, feedback); err != nil {
		s.metrics.RecordSubmission(string(req.Mode), "save_failed", 0)
		s.logger.Error().Err(err).Int("level", req.Level.ID).Msg("saving feedback failed")
		return SubmitResult{}, fmt.Errorf("%w: %w", ErrSaveFeedback, err)
	}

	s.metrics.RecordSubmission(string(req.Mode), "ok", xp)
	s.logger.Info().Int("level", req.Level.ID).Int("xp", xp).Msg("analysis saved")
	return SubmitResult{Analysis: analysis, XP: xp, LevelID: req.Level.ID}, nil
}
