package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/polyseek/internal/app"
	"github.com/alanyoungcy/polyseek/internal/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stdout, cfg.LogLevel)
			slog.SetDefault(logger)

			if err := cfg.Validate(); err != nil {
				logger.Error("invalid configuration", slog.String("error", err.Error()))
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger.Info("polyseek starting",
				slog.String("config", configPath),
				slog.String("version", app.Version),
				slog.Any("settings", config.RedactedConfig(cfg)),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application := app.New(cfg, logger)
			defer application.Close()

			if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("application exited with error", slog.String("error", err.Error()))
				return err
			}
			logger.Info("polyseek stopped")
			return nil
		},
	}
}
