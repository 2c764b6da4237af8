package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coachdesk/coachdesk/adapter/cli"
	cliEngagement "github.com/coachdesk/coachdesk/adapter/cli/engagement"
	cliSubscription "github.com/coachdesk/coachdesk/adapter/cli/subscription"
	"github.com/coachdesk/coachdesk/internal/app"
	"github.com/coachdesk/coachdesk/pkg/config"
)

func main() {
	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// In development without .env, use defaults
		logger.Warn("failed to load config, using development mode", "error", err)
		cfg = &config.Config{AppEnv: "development", StorageDriver: "memory"}
	}

	// Update logger level based on config
	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	cli.SetLogger(logger)

	// Try to initialize the full container
	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
			// In development, allow CLI to run without a database
			cliApp = nil
		} else {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
	} else {
		defer container.Close()

		cliApp = &cli.App{
			CreateSubscriptionHandler:     container.CreateSubscriptionHandler,
			FreezeHandler:                 container.FreezeHandler,
			UnfreezeHandler:               container.UnfreezeHandler,
			CancelHandler:                 container.CancelHandler,
			RecordUsageHandler:            container.RecordUsageHandler,
			GetSubscriptionHandler:        container.GetSubscriptionHandler,
			ListSubscriptionsHandler:      container.ListSubscriptionsHandler,
			GetHistoryHandler:             container.GetHistoryHandler,
			ComputeEngagementHandler:      container.ComputeEngagementHandler,
			ComputeEngagementBatchHandler: container.ComputeEngagementBatchHandler,
		}
	}

	// Set the CLI app
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(cliSubscription.Cmd)
	cli.AddCommand(cliEngagement.Cmd)

	// Execute CLI
	cli.Execute()
}
