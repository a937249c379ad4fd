package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khmercoders/kcbot/internal/conf"
	"github.com/khmercoders/kcbot/internal/mcp"
)

// newMCPCmd creates `kcbot mcp`, the stdio MCP server
func newMCPCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve chat history tools over MCP (stdio)",
		Long: `Serve read-only tools over the Model Context Protocol on stdin/stdout:
recent_messages, summarize_chat and user_activity.

Example MCP client entry:
  {"command": "kcbot", "args": ["mcp", "--config", "/etc/kcbot/kcbot.yaml"]}`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, (*conf.Config).ValidateStore)
			if err != nil {
				return err
			}
			defer a.Close()

			uc, err := a.usecases()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return mcp.NewServer(version, a.repos.Message, a.repos.User, uc.Summary, a.logger).Run(ctx)
		},
	}
}
