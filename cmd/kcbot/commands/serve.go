package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/khmercoders/kcbot/internal/conf"
	"github.com/khmercoders/kcbot/internal/infra/telegram"
	"github.com/khmercoders/kcbot/internal/server"
	"github.com/khmercoders/kcbot/internal/service"
)

// newServeCmd creates `kcbot serve`, the webhook server
func newServeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Telegram webhook server",
		Long: `Start the webhook server that records messages and answers commands.

With --register (or telegram.register_commands) the command menu is
published and, when telegram.webhook_url is set, the webhook is pointed
at this server.

Examples:
  kcbot serve
  kcbot serve --register --config ./configs/kcbot.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, version)
		},
	}

	cmd.Flags().Bool("register", false, "register bot commands and the webhook on startup")
	return cmd
}

func runServe(cmd *cobra.Command, version string) error {
	a, err := loadApp(cmd, (*conf.Config).Validate)
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

	client := telegram.NewClient(a.cfg.Telegram.APIURL, a.cfg.Telegram.Token, a.logger)

	register, _ := cmd.Flags().GetBool("register")
	if register || a.cfg.Telegram.RegisterCommands {
		if err := registerBot(ctx, client, a.cfg.Telegram); err != nil {
			return err
		}
		a.logger.Info("bot registered", "webhook_url", a.cfg.Telegram.WebhookURL)
	}

	botUsername := ""
	meCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if me, err := client.GetMe(meCtx); err != nil {
		a.logger.Warn("getMe failed, accepting commands for any bot", "error", err)
	} else {
		botUsername = me.Username
	}
	cancel()

	bot := service.NewBotService(uc, client, botUsername, a.logger)
	srv := server.NewHTTPServer(a.cfg.Server, a.cfg.Telegram.WebhookSecret, bot, a.logger)

	a.logger.Info("kcbot starting",
		"version", version,
		"bot", botUsername,
		"webhook_path", a.cfg.Server.WebhookPath,
		"dev_mode", a.cfg.DevMode,
	)
	return srv.Run(ctx)
}

func registerBot(ctx context.Context, client *telegram.Client, cfg conf.TelegramConfig) error {
	if err := client.SetMyCommands(ctx, service.Commands()); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	if cfg.WebhookURL == "" {
		return nil
	}
	if err := client.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}
	return nil
}
