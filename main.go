package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"happycast/internal"
	"happycast/internal/config"
	"happycast/internal/container"
	"happycast/internal/dashboard"
	"happycast/ui"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(appConfig.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitWithDatabase(ctx); err != nil {
		logger.Warn("Result store unavailable, serving summary files only: %v", err)
	}

	ds, err := appContainer.LoadDataset(ctx)
	if err != nil {
		log.Fatalf("Failed to load dataset %s: %v", appConfig.Data.DatasetPath, err)
	}
	logger.Info("Loaded %d records for %d countries from %s", ds.Len(), len(ds.Countries()), appConfig.Data.DatasetPath)

	server := ui.NewApp(
		ui.Config{Port: appConfig.Server.Port, OutputDir: appConfig.Data.OutputDir},
		dashboard.NewViews(ds),
		appContainer.ResultRepo,
		appContainer.Tables,
		logger,
	)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
