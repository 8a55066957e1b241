package cli

import (
	"github.com/spf13/cobra"

	"speakdrill/internal/domain"
	"speakdrill/internal/output"
)

func NewLevelsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List levels and your progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(cmd.OutOrStdout())
			ctx := cmd.Context()

			levels, err := deps.Services.Store.Levels(ctx)
			if err != nil {
				return err
			}
			if len(levels) == 0 {
				formatter.Info("No levels found")
				return nil
			}
			progress, err := deps.Services.Store.UserProgress(ctx)
			if err != nil {
				return err
			}

			formatter.LevelListHeader(progress)
			for _, status := range domain.LevelStatuses(levels, &progress) {
				formatter.LevelListItem(status)
			}
			return nil
		},
	}
}
