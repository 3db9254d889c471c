package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/metrics"
	"github.com/alanyoungcy/polyseek/internal/server/handler"
	"github.com/alanyoungcy/polyseek/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type okAnalyzer struct{}

func (okAnalyzer) Analyze(_ context.Context, in service.Input, _ service.Emitter) (domain.Report, error) {
	if _, err := in.Normalize(); err != nil {
		return domain.Report{}, err
	}
	return domain.Report{
		Markdown: "# Report",
		Result:   domain.AnalysisResult{Verdict: domain.VerdictUncertain, ConfidencePct: 50},
	}, nil
}

type emptyStore struct{}

func (emptyStore) Save(context.Context, domain.Report) error { return nil }
func (emptyStore) GetByID(context.Context, string) (domain.Report, error) {
	return domain.Report{}, domain.ErrNotFound
}
func (emptyStore) List(context.Context, domain.ListOpts) ([]domain.ReportSummary, error) {
	return []domain.ReportSummary{}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (domain.RateDecision, error) {
	return domain.RateDecision{RetryAfter: time.Minute}, nil
}

func newTestServer(cfg Config, withReports bool, deps Deps) http.Handler {
	logger := testLogger()
	h := Handlers{
		Health:   handler.NewHealthHandler(),
		Trending: handler.NewTrendingHandler(),
		Analyze:  handler.NewAnalyzeHandler(okAnalyzer{}, time.Minute, logger),
	}
	if withReports {
		h.Reports = handler.NewReportHandler(emptyStore{}, nil, logger)
	}
	return NewServer(cfg, h, deps, logger).Handler()
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutesAndAliases(t *testing.T) {
	h := newTestServer(Config{}, false, Deps{})

	for _, path := range []string{"/health", "/api/health"} {
		rec := do(h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}

	rec := do(h, http.MethodGet, "/api/trending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodPost, "/analyze", `{"market_url":"https://polymarket.com/event/x"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"markdown":"# Report"`)

	rec = do(h, http.MethodGet, "/analyze", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(h, http.MethodGet, "/reports", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportRoutesWhenStoreConfigured(t *testing.T) {
	h := newTestServer(Config{}, true, Deps{})

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/reports", "", nil).Code)
	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/reports/missing", "", nil).Code)
}

func TestAuthExemptsHealth(t *testing.T) {
	h := newTestServer(Config{APIKey: "k"}, false, Deps{})

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/trending", "", nil).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/trending", "", map[string]string{"X-API-Key": "k"}).Code)
}

func TestRateLimitAppliesToAnalyzeOnly(t *testing.T) {
	h := newTestServer(Config{RateLimitPerMinute: 1}, false, Deps{Limiter: denyLimiter{}})

	require.Equal(t, http.StatusTooManyRequests,
		do(h, http.MethodPost, "/analyze", `{"market_url":"https://polymarket.com/event/x"}`, nil).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/trending", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New("test")
	logger := testLogger()
	h := NewServer(Config{}, Handlers{
		Health:   handler.NewHealthHandler(),
		Trending: handler.NewTrendingHandler(),
		Analyze:  handler.NewAnalyzeHandler(okAnalyzer{}, 0, logger),
		Metrics:  m.Handler(),
	}, Deps{Instrumenter: m}, logger).Handler()

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", nil).Code)

	rec := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `polyseek_http_requests_total{method="GET",route="GET /health",status="200"} 1`)
}
