package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"keygate/internal/app"
	"keygate/internal/client"
	"keygate/internal/config"
	"keygate/internal/fingerprint"
	"keygate/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "keygate.yaml", "path to config file")
	traceOut := flag.String("trace-out", "", "write spans to this file (tracing disabled when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if _, err := infrastructure.InitializeLogger(cfg.Logging); err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, *traceOut)
	if err != nil {
		slog.Error("Failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	session := app.NewSession(
		cfg.Limits,
		client.New(cfg.Service),
		fingerprint.NewGenerator(fingerprint.NewSystemSource()),
		os.Stdin,
		os.Stdout,
	)

	if err := session.Run(ctx); err != nil {
		slog.Error("Session failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func setupTracing(ctx context.Context, path string) (func(context.Context) error, error) {
	if path == "" {
		return infrastructure.InitTracing(ctx, nil)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return infrastructure.InitTracing(ctx, file)
}
