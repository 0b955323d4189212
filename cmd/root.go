// Package cmd implements the fitplanner CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitstack/fitplanner/internal/app"
	"github.com/fitstack/fitplanner/internal/config"
	"github.com/fitstack/fitplanner/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "fitplanner",
	Short: "Retrieval-grounded fitness and diet planning",
	Long: `fitplanner generates personalized workout and diet plans grounded in
an indexed knowledge base. Plans cite the knowledge chunks they draw
from and regenerate automatically when logged progress moves against
the user's goal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment lowers
// the level; logs always go to stderr so stdout stays scriptable.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

// setupApp loads config and wires the application for commands that
// need the full pipeline. Callers must Close the returned app.
func setupApp(ctx context.Context) (*app.App, log.Logger, error) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, logger, nil
}
