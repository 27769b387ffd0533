package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/linky"
	"github.com/pevans/linky/archive"
	"github.com/pevans/linky/config"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		bootLog := config.NewLogger("info", "console")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	archivePath := flag.String("archive", settings.ArchiveDSN, "Path to archive database (LINKY_ARCHIVE_DSN)")
	addr := flag.String("addr", settings.APIAddr, "Listen address (LINKY_API_ADDR)")
	maxEntries := flag.Int64("max-entries", settings.MaxEntries, "Archive entry ceiling (LINKY_ARCHIVE_MAX_ENTRIES)")
	maxSize := flag.Int64("max-size-bytes", settings.MaxSizeBytes, "Archive size ceiling in bytes (LINKY_ARCHIVE_MAX_SIZE_BYTES)")
	logLevel := flag.String("log-level", settings.LogLevel, "Log level (LINKY_LOG_LEVEL)")
	logFormat := flag.String("log-format", settings.LogFormat, "Log format: json or console (LINKY_LOG_FORMAT)")
	verifySchedule := flag.String("verify-schedule", linky.DefaultVerifySchedule, "Cron schedule for archive integrity checks, empty to disable")
	flag.Parse()

	log := config.NewLogger(*logLevel, *logFormat)
	if *logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := archive.NewStore(*archivePath,
		archive.WithLimits(archive.Limits{MaxEntries: *maxEntries, MaxSizeBytes: *maxSize}),
		archive.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open archive")
	}
	defer store.Close()

	if *verifySchedule != "" {
		verifier, err := linky.NewVerifier(store, *verifySchedule, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule archive checks")
		}
		verifier.Start()
		defer verifier.Stop()
	}

	server := linky.NewAPIServer(store, log)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msgf("Starting archive API server on http://%s/api/v1/archive", *addr)
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
		}
	}
}
