package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/avoronov/saved-sorter/internal/shared"
)

func main() {
	// Optional .env overlay; a missing file is not an error.
	_ = godotenv.Load()

	logger := shared.NewLogger(nil)
	runner := NewRunner(logger, os.Stdout)

	app := &cli.Command{
		Name:     "saved-sorter",
		Usage:    "Telegram bot that sorts VK saved photos into albums",
		Version:  "1.0.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
