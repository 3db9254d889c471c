package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/config"
	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func offlineConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Offline = true
	return &cfg
}

func TestAnalyze_OfflineReturnsStubResult(t *testing.T) {
	a := New(offlineConfig(), testLogger())
	defer a.Close()

	var out bytes.Buffer
	report, err := a.Analyze(context.Background(), service.Input{
		MarketURL: "https://polymarket.com/event/test-market",
	}, &out)
	require.NoError(t, err)

	require.Equal(t, domain.VerdictUncertain, report.Result.Verdict)
	require.Equal(t, 50.0, report.Result.ConfidencePct)
	require.Equal(t, domain.VenuePolymarket, report.Venue)
	require.Contains(t, out.String(), "[RECEIVED]")
	require.Contains(t, out.String(), "[MARKET_METADATA]")
	require.Contains(t, out.String(), "[ANALYSIS_MARKDOWN]")
	require.Contains(t, out.String(), "[COMPLETE]")
}

func TestAnalyze_OfflineStubRunsDeepPipeline(t *testing.T) {
	cfg := offlineConfig()
	cfg.LLM.Stub = true
	a := New(cfg, testLogger())
	defer a.Close()

	var out bytes.Buffer
	report, err := a.Analyze(context.Background(), service.Input{
		MarketURL: "https://kalshi.com/markets/kxtest",
		Depth:     domain.DepthDeep,
	}, &out)
	require.NoError(t, err)
	require.Equal(t, domain.VenueKalshi, report.Venue)
	require.Contains(t, out.String(), "[DEEP_MODE]")
	require.NotEmpty(t, report.Markdown)
}

func TestAnalyze_InvalidDepth(t *testing.T) {
	a := New(offlineConfig(), testLogger())
	defer a.Close()

	_, err := a.Analyze(context.Background(), service.Input{
		MarketURL: "https://polymarket.com/event/test-market",
		Depth:     "extreme",
	}, io.Discard)
	require.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestWire_NoAPIKeyFallsBackToOfflineResult(t *testing.T) {
	cfg := offlineConfig()
	cfg.LLM.APIKey = ""
	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.Analyzer)
	require.NotNil(t, deps.Metrics)
	require.Nil(t, deps.ReportStore)
	require.Nil(t, deps.RateLimiter)
	require.Empty(t, deps.Sinks)
}

func TestWire_BadKalshiKeyPath(t *testing.T) {
	cfg := offlineConfig()
	cfg.Kalshi.RSAPrivateKeyPath = t.TempDir() + "/missing.pem"
	_, _, err := Wire(context.Background(), cfg, testLogger())
	require.Error(t, err)
}

func TestBuildServer_Routes(t *testing.T) {
	cfg := offlineConfig()
	a := New(cfg, testLogger())
	deps, err := a.wire(context.Background())
	require.NoError(t, err)
	defer a.Close()

	srv := a.buildServer(deps)
	h := srv.http.Handler()

	for _, path := range []string{"/health", "/api/health", "/trending", "/api/trending", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	// Reports are only routed when a store is configured.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
