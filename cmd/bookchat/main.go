// Command bookchat is the terminal client for the book assistant backend.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bookchat-dev/bookchat"
	"github.com/bookchat-dev/bookchat/pkg/config"
)

// Version is set via ldflags.
var Version = "dev"

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "bookchat",
		Short:         "Chat with the book assistant",
		Long:          "bookchat is a streaming terminal client for the book assistant backend.\nIt keeps a persistent session, deduplicates replayed stream events, and\nmirrors the conversation locally.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newChatCmd(),
		newSendCmd(),
		newHistoryCmd(),
		newClearCmd(),
		newSavedCmd(),
		newPruneCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".bookchat", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

// newApp builds a headless App (no view) for the one-shot subcommands.
func newApp() (*bookchat.App, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	logger := newLogger(cfg)
	app, err := bookchat.New(cfg, nil, nil, logger)
	if err != nil {
		return nil, logger, err
	}
	return app, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bookchat %s\n", Version)
		},
	}
}
