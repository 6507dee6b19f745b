// CLAUDE:SUMMARY adfriend CLI entry point: cobra root with serve, rewrite, watch and mcp subcommands sharing one config and logger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/adfriend/internal/config"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "adfriend:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:     "adfriend",
		Short:   "Replace web ads with quotes and your own reminders",
		Version: version,
		Long: `adfriend finds ad slots in web pages and swaps each one for a motivational
quote or today's reminders.

  serve     reminder service, message API and rewrite proxy over HTTP
  rewrite   print one page with its ads replaced
  watch     drive a Chrome tab and replace ads as they appear
  mcp       expose the reminder and rewrite tools over stdio
  reminders list and add reminders through the message API`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			if opts.debug {
				cfg.Debug = true
			}
			opts.cfg = cfg
			// stdout belongs to the MCP protocol and to rewrite output.
			opts.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
			slog.SetDefault(opts.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("ADFRIEND_CONFIG"), "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newRewriteCmd(opts),
		newWatchCmd(opts),
		newMCPCmd(opts),
		newRemindersCmd(opts),
	)
	return root
}
