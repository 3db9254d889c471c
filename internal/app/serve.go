package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyseek/internal/server"
	"github.com/alanyoungcy/polyseek/internal/server/handler"
	"github.com/alanyoungcy/polyseek/internal/server/ws"
)

const shutdownTimeout = 5 * time.Second

// serve runs the API server and the WebSocket hub until ctx is cancelled.
func (a *App) serve(ctx context.Context, deps *Dependencies) error {
	srv := a.buildServer(deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.hub.Run(gctx)
	})
	g.Go(func() error {
		return srv.http.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("server stopped")
	return err
}

type apiServer struct {
	http *server.Server
	hub  *ws.Hub
}

func (a *App) buildServer(deps *Dependencies) apiServer {
	cfg := a.cfg.Server
	timeout := cfg.AnalyzeTimeout.Duration

	var reports *handler.ReportHandler
	if deps.ReportStore != nil {
		var searcher handler.ReportSearcher
		if deps.Search != nil {
			searcher = deps.Search
		}
		reports = handler.NewReportHandler(deps.ReportStore, searcher, a.logger)
	}

	hub := ws.NewHub(deps.Analyzer, deps.SignalBus, ws.Config{
		AnalyzeTimeout: timeout,
		AllowedOrigins: cfg.CORSOrigins,
		OnConnChange:   deps.Metrics.WSConnected,
	}, a.logger)

	httpSrv := server.NewServer(
		server.Config{
			Port:               cfg.Port,
			CORSOrigins:        cfg.CORSOrigins,
			APIKey:             cfg.APIKey,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			TrustProxy:         cfg.TrustProxy,
			WriteTimeout:       timeout + 30*time.Second,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(),
			Trending: handler.NewTrendingHandler(),
			Analyze:  handler.NewAnalyzeHandler(deps.Analyzer, timeout, a.logger),
			Reports:  reports,
			Metrics:  deps.Metrics.Handler(),
		},
		server.Deps{
			Hub:          hub,
			Limiter:      deps.RateLimiter,
			Instrumenter: deps.Metrics,
		},
		a.logger,
	)
	return apiServer{http: httpSrv, hub: hub}
}
