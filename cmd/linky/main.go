package main

import (
	"fmt"
	"os"

	"github.com/pevans/linky/archive"
	"github.com/pevans/linky/config"
	"github.com/pevans/linky/rules"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Flag variables shared by every command.
var (
	flagArchive  string
	flagRules    string
	flagLogLevel string
	flagFormat   string
)

var settings config.Settings

var rootCmd = &cobra.Command{
	Use:   "linky",
	Short: "linky - archive the readable text of web pages",
	Long: `linky turns captured web pages into normalized markdown, skips loading
screens and unchanged content, and keeps the result in a bounded archive.

Usage:
  linky <command> [arguments]`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("archive") {
			s.ArchiveDSN = flagArchive
		}
		if cmd.Flags().Changed("rules") {
			s.RulesFile = flagRules
		}
		if cmd.Flags().Changed("log-level") {
			s.LogLevel = flagLogLevel
		}
		settings = s
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagArchive, "archive", "", "Path to archive database (LINKY_ARCHIVE_DSN)")
	rootCmd.PersistentFlags().StringVar(&flagRules, "rules", "", "Path to a domain rules file (LINKY_RULES_FILE)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (LINKY_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "table", "Output format: table or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	return config.NewLogger(settings.LogLevel, settings.LogFormat)
}

func openArchive() (*archive.Store, error) {
	store, err := archive.NewStore(settings.ArchiveDSN,
		archive.WithLimits(archive.Limits{
			MaxEntries:   settings.MaxEntries,
			MaxSizeBytes: settings.MaxSizeBytes,
		}),
		archive.WithLogger(newLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return store, nil
}

func loadRules() (*rules.Config, error) {
	return rules.Load(settings.RulesFile)
}
