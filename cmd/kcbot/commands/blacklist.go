package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khmercoders/kcbot/internal/biz/domain"
	"github.com/khmercoders/kcbot/internal/conf"
)

// newBlacklistCmd creates `kcbot blacklist` to manage excluded forum topics
func newBlacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage threads that are never recorded or summarized",
	}
	cmd.AddCommand(newBlacklistAddCmd(), newBlacklistRemoveCmd(), newBlacklistListCmd())
	return cmd
}

func newBlacklistAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <thread-id>",
		Short: "Blacklist a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, (*conf.Config).ValidateStore)
			if err != nil {
				return err
			}
			defer a.Close()

			reason, _ := cmd.Flags().GetString("reason")
			entry := &domain.ThreadBlacklistEntry{ThreadID: args[0], Reason: reason}
			if err := a.repos.Thread.AddToBlacklist(cmd.Context(), entry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thread %s blacklisted\n", args[0])
			return nil
		},
	}
	cmd.Flags().String("reason", "", "why the thread is excluded")
	return cmd
}

func newBlacklistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <thread-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a thread from the blacklist",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, (*conf.Config).ValidateStore)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repos.Thread.RemoveFromBlacklist(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thread %s removed from blacklist\n", args[0])
			return nil
		},
	}
}

func newBlacklistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List blacklisted threads",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, (*conf.Config).ValidateStore)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.repos.Thread.ListBlacklist(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no blacklisted threads")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "THREAD\tSINCE\tREASON")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ThreadID, e.CreatedAt.Format(time.DateTime), e.Reason)
			}
			return w.Flush()
		},
	}
}
