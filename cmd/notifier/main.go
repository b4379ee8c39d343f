package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/quitpal/notifier/internal/app"
	"github.com/quitpal/notifier/internal/config"
	"github.com/quitpal/notifier/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = lg.Sync() }()

	if err := app.New(cfg, lg).Run(context.Background()); err != nil {
		os.Exit(1)
	}
}
