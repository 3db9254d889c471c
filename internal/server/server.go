// Package server exposes the analysis service over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/server/handler"
	"github.com/alanyoungcy/polyseek/internal/server/middleware"
	"github.com/alanyoungcy/polyseek/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port               int
	CORSOrigins        []string
	APIKey             string // if empty, authentication is disabled
	RateLimitPerMinute int
	// TrustProxy keys rate limits on forwarded client addresses.
	TrustProxy bool
	// WriteTimeout must cover a full deep analysis.
	WriteTimeout time.Duration
}

// Handlers aggregates the HTTP handlers. Reports and Metrics are optional.
type Handlers struct {
	Health   *handler.HealthHandler
	Trending *handler.TrendingHandler
	Analyze  *handler.AnalyzeHandler
	Reports  *handler.ReportHandler
	Metrics  http.Handler
}

// Instrumenter wraps the mux with request metrics.
type Instrumenter interface {
	Middleware(next http.Handler) http.Handler
}

// Deps carries optional infrastructure.
type Deps struct {
	Hub          *ws.Hub
	Limiter      domain.RateLimiter
	Instrumenter Instrumenter
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain:
// CORS → logging → auth → metrics → mux.
func NewServer(cfg Config, handlers Handlers, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	limit := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.Limiter, middleware.RateLimitConfig{
			Scope:      scope,
			Limit:      cfg.RateLimitPerMinute,
			Window:     time.Minute,
			TrustProxy: cfg.TrustProxy,
		}, logger)(h)
	}

	// Every public route is also served under /api for the web frontend.
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("GET "+prefix+"/health", handlers.Health.HealthCheck)
		mux.HandleFunc("GET "+prefix+"/trending", handlers.Trending.ListTrending)
		mux.Handle("POST "+prefix+"/analyze", limit("analyze", handlers.Analyze.Analyze))

		if handlers.Reports != nil {
			mux.HandleFunc("GET "+prefix+"/reports", handlers.Reports.ListReports)
			mux.HandleFunc("GET "+prefix+"/reports/{id}", handlers.Reports.GetReport)
			if handlers.Reports.CanSearch() {
				mux.HandleFunc("GET "+prefix+"/reports/search", handlers.Reports.SearchReports)
			}
		}
	}

	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if deps.Hub != nil {
		mux.Handle("GET /ws", limit("ws", deps.Hub.HandleWS))
	}

	var h http.Handler = mux
	if deps.Instrumenter != nil {
		h = deps.Instrumenter.Middleware(h)
	}
	h = middleware.Auth(cfg.APIKey, "/health", "/api/health", "/metrics")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Minute
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
		},
		handler: h,
		logger:  logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
