package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"speakdrill/internal/config"
	"speakdrill/internal/domain"
	"speakdrill/internal/output"
)

const backendProbeTimeout = 5 * time.Second

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(cmd.OutOrStdout())
			cfg := deps.Config
			ok := true

			if path, err := exec.LookPath(cfg.Audio.RecorderCommand); err != nil {
				f.SetupCheck("ffmpeg", false, fmt.Sprintf("%q not found. Install ffmpeg or set SPEAKDRILL_FFMPEG_COMMAND", cfg.Audio.RecorderCommand))
				ok = false
			} else {
				f.SetupCheck("ffmpeg", true, path)
			}

			f.SetupCheck("Microphone", true, fmt.Sprintf("%s:%s, permission is checked when recording starts", cfg.Audio.InputFormat, cfg.Audio.InputDevice))

			recognizerOK, detail := recognizerCheck(cfg)
			f.SetupCheck("Live transcript", recognizerOK, detail)
			ok = ok && recognizerOK

			f.SetupCheck("Duration", true, fmt.Sprintf("min %s, max %s",
				domain.FormatClock(config.Seconds(cfg.Session.MinDuration)),
				domain.FormatClock(config.Seconds(cfg.Session.MaxDuration))))

			if cfg.Backend.AccessToken != "" {
				f.SetupCheck("Access token", true, "configured")
			} else {
				f.SetupCheck("Access token", false, "not set. Set SPEAKDRILL_ACCESS_TOKEN")
				ok = false
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), backendProbeTimeout)
			defer cancel()
			if progress, err := deps.Services.Store.UserProgress(ctx); err != nil {
				f.SetupCheck("Backend", false, err.Error())
				ok = false
			} else {
				f.SetupCheck("Backend", true, fmt.Sprintf("%s (%d XP)", cfg.Backend.APIURL, progress.XP))
			}

			if ok {
				f.Success("\nAll prerequisites met. Ready to practice!")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func recognizerCheck(cfg config.Config) (bool, string) {
	switch cfg.Speech.Recognizer {
	case config.RecognizerDeepgram:
		if cfg.Deepgram.APIKey == "" {
			return false, "deepgram selected but DEEPGRAM_API_KEY is not set"
		}
		return true, fmt.Sprintf("deepgram %s (%s)", cfg.Deepgram.Model, cfg.Speech.Language)
	case config.RecognizerGoogle:
		if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			return true, fmt.Sprintf("google (%s), using application default credentials", cfg.Speech.Language)
		}
		return true, fmt.Sprintf("google (%s)", cfg.Speech.Language)
	default:
		return true, "disabled"
	}
}
