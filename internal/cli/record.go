package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"speakdrill/internal/domain"
	"speakdrill/internal/observability"
	"speakdrill/internal/output"
	"speakdrill/internal/usecase"
)

var ErrLevelLocked = errors.New("level is locked")

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var levelID int
	var mode string
	var outPath string
	var noSubmit bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an answer for a level",
		Long:  "Record a spoken answer for a level. Press Enter to stop once the minimum duration has passed; recording stops on its own at the maximum.\nThe answer is then submitted for analysis unless --no-submit is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			practice := domain.PracticeMode(mode)
			if !practice.Valid() {
				return fmt.Errorf("%w: %q", usecase.ErrUnknownMode, mode)
			}
			formatter := output.NewFormatter(cmd.OutOrStdout())
			ctx := cmd.Context()

			level := domain.Level{ID: levelID}
			if !noSubmit {
				var err error
				if level, err = resolveLevel(ctx, deps, levelID); err != nil {
					return err
				}
			}
			formatter.LevelIntro(level, practice)

			if addr := deps.Config.Metrics.Addr; addr != "" {
				server := observability.NewServer(addr, deps.Services.Registry)
				server.Start()
				defer func() { _ = server.Shutdown(context.Background()) }()
			}

			capture, err := runRecording(ctx, deps, formatter, cmd.InOrStdin())
			if err != nil {
				return err
			}

			transcript := capture.Transcript
			if transcript == "" {
				transcript = deps.Sink.Transcript()
			}
			formatter.Transcript(transcript)

			if capture.Empty() {
				return domain.ErrEmptyCapture
			}
			if outPath != "" {
				size, err := saveRecording(outPath, capture)
				if err != nil {
					return err
				}
				formatter.RecordingSaved(outPath, size)
			}
			if noSubmit {
				return nil
			}

			formatter.Analyzing()
			submitCtx, cancel := context.WithTimeout(ctx, deps.Config.Backend.AnalysisTimeout+deps.Config.Backend.APITimeout)
			defer cancel()

			result, err := deps.Services.Submitter.Submit(submitCtx, usecase.SubmitRequest{
				Capture: capture,
				Level:   level,
				Mode:    practice,
			})
			if err != nil {
				return err
			}
			formatter.AnalysisResult(result.Analysis, result.XP)
			return nil
		},
	}

	cmd.Flags().IntVarP(&levelID, "level", "l", 1, "Level to practice")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(domain.PracticeModeContinue), "Practice mode: continue or read")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Also save the recording to this WebM file")
	cmd.Flags().BoolVar(&noSubmit, "no-submit", false, "Record only, skip analysis")

	return cmd
}

// saveRecording writes the capture payload to path and returns its size.
func saveRecording(path string, capture domain.Capture) (int, error) {
	if capture.Empty() {
		return 0, domain.ErrEmptyCapture
	}
	payload := capture.Payload()
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return 0, fmt.Errorf("saving recording: %w", err)
	}
	return len(payload), nil
}

func resolveLevel(ctx context.Context, deps *Dependencies, levelID int) (domain.Level, error) {
	progress, err := deps.Services.Store.UserProgress(ctx)
	if err != nil {
		return domain.Level{}, err
	}
	if !domain.IsLevelUnlocked(&progress, levelID) {
		return domain.Level{}, fmt.Errorf("%w: finish level %d first", ErrLevelLocked, levelID-1)
	}
	return deps.Services.Store.Level(ctx, levelID)
}

// runRecording drives one session: each line on in asks to stop, and the
// call returns once the capture is complete.
func runRecording(ctx context.Context, deps *Dependencies, f *output.Formatter, in io.Reader) (domain.Capture, error) {
	controller := deps.Services.Controller
	if err := controller.Start(ctx); err != nil {
		return domain.Capture{}, err
	}
	minSeconds, maxSeconds := controller.Limits()
	f.RecordingStarted(minSeconds, maxSeconds)

	lines := readLines(in)
	for {
		select {
		case capture := <-deps.Sink.Completions():
			f.RecordingStopped(capture.ElapsedSeconds, capture.Reason)
			return capture, nil
		case _, ok := <-lines:
			if !ok {
				// No more input; wait for the maximum.
				lines = nil
				continue
			}
			err := controller.Stop()
			var premature *domain.PrematureStopError
			switch {
			case err == nil, errors.Is(err, usecase.ErrNoActiveSession), errors.As(err, &premature):
			default:
				return domain.Capture{}, err
			}
		case <-ctx.Done():
			if err := controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
				log.Warn().Err(err).Msg("discarding recording failed")
			}
			return domain.Capture{}, ctx.Err()
		}
	}
}

func readLines(in io.Reader) <-chan struct{} {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- struct{}{}
		}
	}()
	return lines
}
