package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/conf"
)

// newStatsCmd creates `kcbot stats` to print a user's counters
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <telegram-user-id>",
		Short: "Show message counters of a Telegram user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, (*conf.Config).ValidateStore)
			if err != nil {
				return err
			}
			defer a.Close()

			activity, err := a.repos.User.GetUserActivity(cmd.Context(), domain.PlatformTelegram, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if activity == nil {
				fmt.Fprintf(out, "no activity recorded for user %s\n", args[0])
				return nil
			}

			linked := "-"
			if activity.LinkedUserID != nil {
				linked = *activity.LinkedUserID
			}
			fmt.Fprintf(out, "user:        %s (%s)\n", activity.UserID, activity.DisplayName)
			fmt.Fprintf(out, "messages:    %d\n", activity.MessageCount)
			fmt.Fprintf(out, "characters:  %d\n", activity.TotalCharacters)
			fmt.Fprintf(out, "linked:      %s\n", linked)
			fmt.Fprintf(out, "last update: %s\n", activity.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}
