package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pevans/linky"
	"github.com/pevans/linky/archive"
	"github.com/pevans/linky/changes"
	"github.com/pevans/linky/config"
	"github.com/pevans/linky/rules"
	"github.com/rs/zerolog"
)

// options are the resolved command-line settings.
type options struct {
	archivePath string
	changesPath string
	filesDir    string
	remoteURL   string
	rulesFile   string
	limits      archive.Limits
}

func main() {
	// Flags override the environment and config file. Nothing but protocol
	// frames may be written to stdout.
	settings, err := config.Load()
	if err != nil {
		bootLog := config.NewLogger("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	archivePath := flag.String("archive", settings.ArchiveDSN, "Path to archive database (LINKY_ARCHIVE_DSN)")
	changesPath := flag.String("changes", settings.ChangesDSN, "Path to change history database, empty to disable (LINKY_CHANGES_DSN)")
	filesDir := flag.String("files", settings.FilesDir, "Write markdown files under this directory instead of the archive (LINKY_FILES_DIR)")
	remoteURL := flag.String("remote", settings.RemoteURL, "Send content to a linky-api server instead of the archive (LINKY_REMOTE_URL)")
	rulesFile := flag.String("rules", settings.RulesFile, "Path to a domain rules file (LINKY_RULES_FILE)")
	logLevel := flag.String("log-level", settings.LogLevel, "Log level (LINKY_LOG_LEVEL)")
	logFormat := flag.String("log-format", settings.LogFormat, "Log format: json or console (LINKY_LOG_FORMAT)")
	flag.Parse()

	log := config.NewLogger(*logLevel, *logFormat)

	// run owns every open resource, so its deferred closes finish before exit
	err = run(log, options{
		archivePath: *archivePath,
		changesPath: *changesPath,
		filesDir:    *filesDir,
		remoteURL:   *remoteURL,
		rulesFile:   *rulesFile,
		limits: archive.Limits{
			MaxEntries:   settings.MaxEntries,
			MaxSizeBytes: settings.MaxSizeBytes,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Native host failed")
		os.Exit(1)
	}
}

func run(log zerolog.Logger, opts options) error {
	cfg, err := rules.Load(opts.rulesFile)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	// Pick the sink
	var sink linky.Sink
	switch {
	case opts.remoteURL != "":
		remote := linky.NewRemoteSink(opts.remoteURL, nil)
		hbCtx, hbCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := remote.Heartbeat(hbCtx); err != nil {
			log.Warn().Err(err).Str("remote", opts.remoteURL).Msg("Archive server not reachable yet")
		}
		hbCancel()
		log.Info().Str("remote", opts.remoteURL).Msg("Using remote archive")
		sink = remote
	case opts.filesDir != "":
		files, err := linky.NewFileSink(opts.filesDir)
		if err != nil {
			return fmt.Errorf("failed to open file storage: %w", err)
		}
		log.Info().Str("dir", opts.filesDir).Msg("Writing markdown files")
		sink = files
	default:
		store, err := archive.NewStore(opts.archivePath,
			archive.WithLimits(opts.limits),
			archive.WithLogger(log),
		)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer store.Close()
		log.Info().Str("archive", opts.archivePath).Msg("Opened archive")
		sink = store
	}

	pipelineOpts := []linky.PipelineOption{linky.WithLogger(log)}
	if opts.changesPath != "" {
		state, err := changes.NewSQLiteStateStore(opts.changesPath)
		if err != nil {
			return fmt.Errorf("failed to open change history: %w", err)
		}
		defer state.Close()

		tracker, err := changes.NewTracker(state, changes.WithLogger(log))
		if err != nil {
			return fmt.Errorf("failed to load change history: %w", err)
		}
		pipelineOpts = append(pipelineOpts, linky.WithTracker(tracker))
	}

	pipeline := linky.NewPipeline(cfg, sink, pipelineOpts...)
	host := linky.NewHost(pipeline, os.Stdin, os.Stdout, linky.WithHostLogger(log))

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- host.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		host.Stop()
		return nil
	case err := <-errChan:
		return err
	}
}
