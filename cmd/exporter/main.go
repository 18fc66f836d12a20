package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"memovault/internal/config"
	"memovault/internal/exporter"
	"memovault/internal/ledger"
	"memovault/internal/queue"
	"memovault/internal/vault"
)

func main() {
	// Initialize structured logging with JSON handler
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(jsonHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	led, err := ledger.Open(config.LedgerPath)
	if err != nil {
		slog.Error("Failed to open ledger", "path", config.LedgerPath, "error", err)
		os.Exit(1)
	}
	defer led.Close()

	exportQueue, err := queue.NewQueue(ctx)
	if err != nil {
		slog.Error("Failed to connect to export queue", "error", err)
		os.Exit(1)
	}
	defer exportQueue.Close()

	vaultStorage, err := vault.NewStorage(ctx)
	if err != nil {
		slog.Error("Failed to create vault storage", "backend", config.VaultBackend, "error", err)
		os.Exit(1)
	}

	// Cancel the context on SIGINT/SIGTERM so the blocking dequeue unwinds.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down gracefully", "signal", sig)
		cancel()
	}()

	exp := exporter.New(led, exportQueue, vaultStorage)
	if err := exp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Exporter stopped", "error", err)
		os.Exit(1)
	}
}
