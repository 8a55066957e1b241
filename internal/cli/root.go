package cli

import (
	"github.com/spf13/cobra"

	"speakdrill/internal/bootstrap"
	"speakdrill/internal/config"
	"speakdrill/internal/version"
)

type Dependencies struct {
	Services bootstrap.Services
	Config   config.Config
	Sink     *TerminalSink
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "speakdrill",
		Short:         "Practice speaking and get AI feedback",
		Long:          "A terminal companion for speakdrill: record a timed spoken answer for a level, watch the live transcript, and submit it for grammar, vocabulary, fluency and topic scores.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewLevelsCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
