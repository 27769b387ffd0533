package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pevans/linky"
	"github.com/pevans/linky/changes"
	"github.com/pevans/linky/classify"
	"github.com/pevans/linky/markdown"
	"github.com/spf13/cobra"
)

var (
	flagURL        string
	flagTitle      string
	flagArchiveCap bool
	flagTrack      bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <url>",
	Short: "Print the bucket and file name for a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		out := cmd.OutOrStdout()

		if flagFormat == "json" {
			resp := linky.ClassifyResponse{URL: url, Bucket: classify.Classify(url)}
			if name, err := classify.MakeFilename(url); err == nil {
				resp.Filename = name
			}
			return printJSON(out, resp)
		}

		fmt.Fprintln(out, classify.Classify(url))
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Print the normalized markdown for a captured page",
	Long: `Extract reads page markup from a file, or stdin when the file is "-",
and prints the markdown that would be archived.

Examples:
  linky extract page.html --url https://example.com/post
  curl -s https://example.com/feed.xml | linky extract - --url https://example.com/feed.xml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		cfg, err := loadRules()
		if err != nil {
			return err
		}

		maxBytes := markdown.LiveMaxBytes
		if flagArchiveCap {
			maxBytes = markdown.ArchiveMaxBytes
		}

		p := linky.NewPipeline(cfg, nil, linky.WithMaxBytes(maxBytes), linky.WithLogger(newLogger()))
		ext, err := p.Extract(linky.Page{URL: flagURL, Markup: raw, Title: flagTitle})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagFormat == "json" {
			return printJSON(out, ext)
		}

		if ext.Loading.Placeholder {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: content looks like a loading screen")
		}
		fmt.Fprintln(out, ext.Content)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|->",
	Short: "Run a captured page through the pipeline into the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagURL == "" {
			return fmt.Errorf("--url is required")
		}

		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}

		cfg, err := loadRules()
		if err != nil {
			return err
		}

		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		opts := []linky.PipelineOption{linky.WithLogger(newLogger())}
		if flagTrack {
			tracker, closeTracker, err := openTracker()
			if err != nil {
				return err
			}
			defer closeTracker()
			opts = append(opts, linky.WithTracker(tracker))
		}

		p := linky.NewPipeline(cfg, store, opts...)
		result := p.Process(context.Background(), linky.Page{URL: flagURL, Markup: raw, Title: flagTitle})

		out := cmd.OutOrStdout()
		if flagFormat == "json" {
			return printJSON(out, result)
		}

		switch {
		case result.Saved:
			fmt.Fprintf(out, "Saved %s to %s\n", flagURL, result.Bucket)
		case result.Skipped != "":
			fmt.Fprintf(out, "Skipped %s (%s)\n", flagURL, result.Skipped)
		default:
			return fmt.Errorf("failed to archive %s: %s", flagURL, result.Error)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&flagURL, "url", "", "URL the page was captured from")
	extractCmd.Flags().StringVar(&flagTitle, "title", "", "Page title (default: the document's <title>)")
	extractCmd.Flags().BoolVar(&flagArchiveCap, "archive-cap", false, "Use the archive size cap instead of the live cap")

	ingestCmd.Flags().StringVar(&flagURL, "url", "", "URL the page was captured from (required)")
	ingestCmd.Flags().StringVar(&flagTitle, "title", "", "Page title (default: the document's <title>)")
	ingestCmd.Flags().BoolVar(&flagTrack, "track", true, "Skip content identical to an earlier capture")

	rootCmd.AddCommand(classifyCmd, extractCmd, ingestCmd)
}

// readInput reads the named file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func openTracker() (*changes.Tracker, func(), error) {
	state, err := changes.NewSQLiteStateStore(settings.ChangesDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open change history: %w", err)
	}

	tracker, err := changes.NewTracker(state, changes.WithLogger(newLogger()))
	if err != nil {
		state.Close()
		return nil, nil, err
	}
	return tracker, func() { state.Close() }, nil
}
