// Package app wires the analysis pipeline to its collaborators and optional
// backends, and runs it either once from the command line or as a server.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/alanyoungcy/polyseek/internal/config"
	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/service"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

func (a *App) wire(ctx context.Context) (*Dependencies, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	return deps, nil
}

// Analyze runs a single analysis and streams its events to out.
func (a *App) Analyze(ctx context.Context, in service.Input, out io.Writer) (domain.Report, error) {
	deps, err := a.wire(ctx)
	if err != nil {
		return domain.Report{}, err
	}
	a.logger.InfoContext(ctx, "running analysis",
		slog.String("market_url", in.MarketURL),
		slog.Bool("offline", a.cfg.Offline),
	)
	return deps.Analyzer.Analyze(ctx, in, service.NewTextEmitter(out))
}

// Serve starts the HTTP and WebSocket API and blocks until ctx is
// cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting server",
		slog.Int("port", a.cfg.Server.Port),
		slog.String("log_level", a.cfg.LogLevel),
	)
	deps, err := a.wire(ctx)
	if err != nil {
		return err
	}
	return a.serve(ctx, deps)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
