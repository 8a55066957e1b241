package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"speakdrill/internal/bootstrap"
	"speakdrill/internal/config"
	"speakdrill/internal/domain"
	"speakdrill/internal/observability"
	"speakdrill/internal/usecase"
)

const (
	eventRecording  = "speakdrill:recording"
	eventElapsed    = "speakdrill:elapsed"
	eventTranscript = "speakdrill:transcript"
	eventComplete   = "speakdrill:complete"
	eventAlert      = "speakdrill:alert"
)

var (
	ErrNoRecording = errors.New("no finished recording to submit")
	ErrLevelLocked = errors.New("level is locked")
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services bootstrap.Services
	cfg      config.Config
	bootErr  error
	metrics  *observability.Server

	mu          sync.Mutex
	lastCapture *domain.Capture
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.Alert(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	if addr := a.cfg.Metrics.Addr; addr != "" {
		a.metrics = observability.NewServer(addr, services.Registry)
		a.metrics.Start()
	}
}

func (a *App) shutdown(ctx context.Context) {
	if a.services.Controller != nil {
		if err := a.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
			log.Warn().Err(err).Msg("discarding recording on shutdown failed")
		}
	}
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if err := a.services.Close(); err != nil {
		log.Warn().Err(err).Msg("closing services failed")
	}
}

// StartRecording begins a new recording. A permission failure has already
// been reported to the user through Alert.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.mu.Lock()
	a.lastCapture = nil
	a.mu.Unlock()

	if err := a.services.Controller.Start(a.ctx); err != nil {
		return a.services.Controller.Status(), err
	}
	return a.services.Controller.Status(), nil
}

// StopRecording asks the recorder to stop. A premature stop is reported
// through Alert and leaves the recording running.
func (a *App) StopRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	err := a.services.Controller.Stop()
	var premature *domain.PrematureStopError
	switch {
	case err == nil, errors.Is(err, usecase.ErrNoActiveSession):
		return a.services.Controller.Status(), nil
	case errors.As(err, &premature):
		status := a.services.Controller.Status()
		status.Message = premature.Message()
		return status, nil
	default:
		return a.services.Controller.Status(), err
	}
}

// DiscardRecording drops an in-progress recording without submitting it.
func (a *App) DiscardRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.services.Controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStatusIdle, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStatusIdle}
	}
	return a.services.Controller.Status()
}

// GetLevels lists levels with their unlock state for the current user.
func (a *App) GetLevels() ([]domain.LevelStatus, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	levels, err := a.services.Store.Levels(a.ctx)
	if err != nil {
		return nil, err
	}
	progress, err := a.services.Store.UserProgress(a.ctx)
	if err != nil {
		return nil, err
	}
	return domain.LevelStatuses(levels, &progress), nil
}

// GetProgress returns the user's XP and completed levels.
func (a *App) GetProgress() (domain.Progress, error) {
	if err := a.requireReady(); err != nil {
		return domain.Progress{}, err
	}
	return a.services.Store.UserProgress(a.ctx)
}

// Submit sends the last finished recording for analysis against a level.
func (a *App) Submit(levelID int, mode string) (usecase.SubmitResult, error) {
	if err := a.requireReady(); err != nil {
		return usecase.SubmitResult{}, err
	}

	a.mu.Lock()
	capture := a.lastCapture
	a.mu.Unlock()
	if capture == nil {
		return usecase.SubmitResult{}, ErrNoRecording
	}

	progress, err := a.services.Store.UserProgress(a.ctx)
	if err != nil {
		return usecase.SubmitResult{}, err
	}
	if !domain.IsLevelUnlocked(&progress, levelID) {
		return usecase.SubmitResult{}, fmt.Errorf("%w: %d", ErrLevelLocked, levelID)
	}
	level, err := a.services.Store.Level(a.ctx, levelID)
	if err != nil {
		return usecase.SubmitResult{}, err
	}

	ctx, cancel := context.WithTimeout(a.ctx, analysisBudget(a.cfg))
	defer cancel()

	result, err := a.services.Submitter.Submit(ctx, usecase.SubmitRequest{
		Capture: *capture,
		Level:   level,
		Mode:    domain.PracticeMode(mode),
	})
	if err != nil {
		code, message := submitAlert(err)
		a.Alert(code, message)
		return usecase.SubmitResult{}, err
	}

	a.mu.Lock()
	if a.lastCapture == capture {
		a.lastCapture = nil
	}
	a.mu.Unlock()
	return result, nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"recognizer":       a.cfg.Speech.Recognizer,
		"language":         a.cfg.Speech.Language,
		"minDuration":      domain.FormatClock(config.Seconds(a.cfg.Session.MinDuration)),
		"maxDuration":      domain.FormatClock(config.Seconds(a.cfg.Session.MaxDuration)),
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"apiURL":           a.cfg.Backend.APIURL,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services.Controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// RecordingStateChanged emits the recording flag to the frontend.
func (a *App) RecordingStateChanged(recording bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecording, map[string]any{"recording": recording})
}

// ElapsedChanged emits the elapsed clock.
func (a *App) ElapsedChanged(seconds int) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventElapsed, map[string]any{
		"seconds": seconds,
		"clock":   domain.FormatClock(seconds),
	})
}

// TranscriptUpdated emits the live transcript preview.
func (a *App) TranscriptUpdated(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, map[string]string{"text": text})
}

// RecordingComplete keeps the capture for Submit and tells the frontend.
func (a *App) RecordingComplete(capture domain.Capture) {
	a.mu.Lock()
	a.lastCapture = &capture
	a.mu.Unlock()

	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventComplete, map[string]any{
		"seconds":    capture.ElapsedSeconds,
		"reason":     string(capture.Reason),
		"transcript": capture.Transcript,
		"bytes":      len(capture.Payload()),
		"empty":      capture.Empty(),
	})
}

// Alert emits the alert and shows it as a blocking dialog.
func (a *App) Alert(code domain.ErrorCode, message string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAlert, map[string]string{
		"code":    string(code),
		"title":   alertTitle(code),
		"message": message,
	})
	go func(ctx context.Context) {
		_, err := runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
			Type:    dialogType(code),
			Title:   alertTitle(code),
			Message: message,
		})
		if err != nil {
			log.Debug().Err(err).Msg("message dialog failed")
		}
	}(a.ctx)
}

func submitAlert(err error) (domain.ErrorCode, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyCapture):
		return domain.ErrorCodeEmptyCapture, "No audio was recorded. Please try again."
	case errors.Is(err, usecase.ErrSaveFeedback):
		return domain.ErrorCodeFeedback, "Your answer was analyzed but saving your progress failed: " + err.Error()
	case errors.Is(err, usecase.ErrUnknownMode):
		return domain.ErrorCodeAnalysis, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorCodeAnalysis, "Analysis timed out. Please try again."
	default:
		return domain.ErrorCodeAnalysis, "Failed to analyze audio: " + err.Error()
	}
}

func alertTitle(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Microphone unavailable"
	case domain.ErrorCodePrematureStop:
		return "Keep going"
	case domain.ErrorCodeEmptyCapture:
		return "Nothing recorded"
	case domain.ErrorCodeAnalysis:
		return "Analysis failed"
	case domain.ErrorCodeFeedback:
		return "Saving feedback failed"
	default:
		return "Speakdrill"
	}
}

func dialogType(code domain.ErrorCode) runtime.DialogType {
	switch code {
	case domain.ErrorCodePrematureStop:
		return runtime.InfoDialog
	case domain.ErrorCodePermission, domain.ErrorCodeEmptyCapture:
		return runtime.WarningDialog
	default:
		return runtime.ErrorDialog
	}
}

// analysisBudget bounds one Submit: the upload plus saving feedback.
func analysisBudget(cfg config.Config) time.Duration {
	return cfg.Backend.AnalysisTimeout + cfg.Backend.APITimeout
}
