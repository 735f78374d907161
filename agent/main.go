package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"texttools/config"
	"texttools/dapp"
	"texttools/logging"
	"texttools/rollup"
	"texttools/textops"
)

// Architecture: the agent is purely reactive. It keeps no state between
// inputs; it asks the rollup coordinator for work and replies with
// notices and reports.

var (
	configPath string
	rollupURL  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Text-processing DApp worker",
	Long: `Polls the rollup coordinator for advance and inspect requests, runs
the requested text operation and emits the result as a notice.

The coordinator URL is taken from --rollup-url, ROLLUP_HTTP_SERVER_URL or
the config file, in that order.`,
	SilenceUsage: true,
	RunE:         runAgent,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.Flags().StringVar(&rollupURL, "rollup-url", "", "rollup coordinator base URL")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if rollupURL != "" {
		cfg.Rollup.URL = rollupURL
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	client := rollup.NewClient(cfg.Rollup.URL, cfg.GetFinishTimeout(), cfg.GetSubmitTimeout())
	dispatcher := dapp.NewDispatcher(client, textops.Default(), logger)
	loop := dapp.NewLoop(client, dispatcher, cfg.GetRetryInterval(), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Agent started",
		zap.String("rollup_url", cfg.Rollup.URL),
		zap.Strings("ops", textops.Default().Names()))

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Agent stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
