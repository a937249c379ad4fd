// Package commands implements the kcbot CLI with cobra.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/khmercoders/kcbot/internal/biz"
	"github.com/khmercoders/kcbot/internal/conf"
	"github.com/khmercoders/kcbot/internal/data"
	"github.com/khmercoders/kcbot/internal/pkg/logger"
)

// NewRootCmd creates the root command with all subcommands registered
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kcbot",
		Short: "KhmerCoders Telegram bot",
		Long: `kcbot records KhmerCoders supergroup messages and answers /summary
with an AI summary of the recent conversation.

Examples:
  kcbot serve --register
  kcbot mcp
  kcbot blacklist add 42 --reason "off topic"
  kcbot stats 123456789`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(version),
		newMCPCmd(version),
		newBlacklistCmd(),
		newStatsCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}

// app holds what every subcommand loads: config, logger and the store
type app struct {
	cfg    *conf.Config
	logger *slog.Logger
	repos  *data.Repositories

	logCloser io.Closer
}

// loadApp reads the config and opens the database. validate picks the
// checks the subcommand needs.
func loadApp(cmd *cobra.Command, validate func(*conf.Config) error) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := conf.Load(path)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	// stdout may be the MCP transport, so logs always go to stderr
	log, closer, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	repos, err := data.NewRepositories(cfg.Database.Path, cfg.Database.BusyTimeoutMS)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: log, repos: repos, logCloser: closer}, nil
}

// usecases wires the business layer on top of the store
func (a *app) usecases() (*biz.Usecases, error) {
	summaryCfg, err := a.cfg.ToSummaryConfig()
	if err != nil {
		return nil, err
	}

	generator := data.NewTextGenerator(data.GeneratorConfig{
		BaseURL:     a.cfg.LLM.BaseURL,
		APIKey:      a.cfg.LLM.APIKey,
		Model:       a.cfg.LLM.Model,
		Stream:      a.cfg.LLM.Stream,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Temperature: a.cfg.LLM.Temperature,
	}, a.logger)

	return biz.NewUsecases(biz.Deps{
		Messages:  a.repos.Message,
		Users:     a.repos.User,
		Threads:   a.repos.Thread,
		Generator: generator,
		Verifier:  data.NewAccountVerifier(a.cfg.Link.APIURL, a.cfg.Link.Timeout),
	}, summaryCfg, a.cfg.DevMode, a.logger), nil
}

func (a *app) Close() {
	if err := a.repos.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
	a.logCloser.Close()
}
