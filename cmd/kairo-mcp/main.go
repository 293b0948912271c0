// kairo-mcp serves the resolution pipeline over the MCP stdio transport.
// Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kairo-ai/kairo"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("KAIRO_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	app, err := kairo.New(
		kairo.WithLogger(logger),
		kairo.WithVersion(version),
	)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	logger.Info("kairo-mcp serving on stdio", "version", version, "parts", app.CatalogSize())
	return app.Run(ctx)
}
