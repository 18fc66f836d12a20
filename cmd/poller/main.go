package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memovault/internal/capture"
	"memovault/internal/config"
	"memovault/internal/dedup"
	"memovault/internal/fingerprint"
	"memovault/internal/icloud"
	"memovault/internal/ledger"
	"memovault/internal/poller"
	"memovault/internal/queue"
	"memovault/internal/scanner"
	"memovault/internal/server"
)

func main() {
	// Initialize structured logging with JSON handler
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	if config.VoiceFolder == "" {
		slog.Error("VOICE_FOLDER is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	led, err := ledger.Open(config.LedgerPath)
	if err != nil {
		slog.Error("Failed to open ledger", "path", config.LedgerPath, "error", err)
		os.Exit(1)
	}
	defer led.Close()

	dedupService, err := dedup.NewService(ctx)
	if err != nil {
		slog.Error("Failed to connect to fingerprint set", "error", err)
		os.Exit(1)
	}
	defer dedupService.Close()

	exportQueue, err := queue.NewQueue(ctx)
	if err != nil {
		slog.Error("Failed to connect to export queue", "error", err)
		os.Exit(1)
	}
	defer exportQueue.Close()

	adapter := icloud.NewAdapter()
	cycle := poller.NewCycle(
		scanner.NewScanner(),
		led,
		icloud.NewMaterializer(adapter),
		fingerprint.File,
		dedupService,
		capture.NewStager(led),
		exportQueue,
	)

	runner := poller.NewRunner(cycle)
	runner.Start()

	srv := server.NewServer(config.Port, runner, led)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("Status server failed", "error", err)
			cancel()
		}
	}()

	slog.Info("Voice poller started",
		"folder", config.VoiceFolder,
		"interval", config.PollInterval,
		"port", config.Port)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down gracefully", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down")
	}

	runner.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Status server shutdown failed", "error", err)
	}
}
