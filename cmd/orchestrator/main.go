package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/tjfontaine/automation-orchestrator/pkg/orchestrator"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the YAML config file")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	pflag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("Invalid log level %q: %v", *logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	app, err := orchestrator.New(
		orchestrator.WithLogger(logger),
		orchestrator.WithFileConfig(*configPath),
	)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	runErr := app.Run(ctx)
	if runErr != nil {
		logger.Error("orchestrator stopped", slog.String("error", runErr.Error()))
	} else {
		logger.Info("shutdown signal received, stopping orchestrator")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
