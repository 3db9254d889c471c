package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/search/elasticsearch"
	"github.com/alanyoungcy/polyseek/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAnalyzer struct {
	got    service.Input
	report domain.Report
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in service.Input, _ service.Emitter) (domain.Report, error) {
	f.got = in
	if f.err != nil {
		return domain.Report{}, f.err
	}
	if _, err := in.Normalize(); err != nil {
		return domain.Report{}, err
	}
	return f.report, nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTrending(t *testing.T) {
	rec := httptest.NewRecorder()
	NewTrendingHandler().ListTrending(rec, httptest.NewRequest(http.MethodGet, "/trending", nil))
	markets := decode[[]TrendingMarket](t, rec)
	require.Len(t, markets, 3)
	require.Equal(t, "0.65", markets[0].Price)
	require.Equal(t, "$1.8M", markets[2].Volume)
}

func TestAnalyze(t *testing.T) {
	report := domain.Report{
		Markdown: "# ok",
		Result:   domain.AnalysisResult{Verdict: domain.VerdictYes, ConfidencePct: 80},
	}

	t.Run("success", func(t *testing.T) {
		fa := &fakeAnalyzer{report: report}
		h := NewAnalyzeHandler(fa, time.Minute, testLogger())
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze",
			strings.NewReader(`{"market_url":"https://polymarket.com/event/x","depth":"deep"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[AnalyzeResponse](t, rec)
		require.Equal(t, "# ok", resp.Markdown)
		require.Equal(t, domain.VerdictYes, resp.JSON.Verdict)
		require.Equal(t, domain.DepthDeep, fa.got.Depth)
	})

	t.Run("missing market url", func(t *testing.T) {
		h := NewAnalyzeHandler(&fakeAnalyzer{}, 0, testLogger())
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"depth":"quick"}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := NewAnalyzeHandler(&fakeAnalyzer{}, 0, testLogger())
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown depth", func(t *testing.T) {
		h := NewAnalyzeHandler(&fakeAnalyzer{report: report}, 0, testLogger())
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze",
			strings.NewReader(`{"market_url":"https://polymarket.com/event/x","depth":"medium"}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "medium")
	})

	t.Run("pipeline failure", func(t *testing.T) {
		fetchErr := &domain.FetchError{Op: "market", URL: "https://example.com/x", Err: domain.ErrUnsupportedHost}
		h := NewAnalyzeHandler(&fakeAnalyzer{err: fmt.Errorf("service: fetch market: %w", fetchErr)}, 0, testLogger())
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/analyze",
			strings.NewReader(`{"market_url":"https://example.com/x"}`)))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode[map[string]string](t, rec)
		require.Contains(t, body["error"], "unsupported market host")
		require.NotContains(t, rec.Body.String(), "markdown")
	})
}

type fakeStore struct {
	reports map[string]domain.Report
	opts    domain.ListOpts
	err     error
}

func (f *fakeStore) Save(context.Context, domain.Report) error { return nil }

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.Report, error) {
	if f.err != nil {
		return domain.Report{}, f.err
	}
	r, ok := f.reports[id]
	if !ok {
		return domain.Report{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) List(_ context.Context, opts domain.ListOpts) ([]domain.ReportSummary, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.ReportSummary{}
	for _, r := range f.reports {
		out = append(out, domain.ReportSummary{ID: r.ID, Verdict: r.Result.Verdict})
	}
	return out, nil
}

type fakeSearcher struct {
	params elasticsearch.SearchParams
}

func (f *fakeSearcher) Search(_ context.Context, p elasticsearch.SearchParams) (*elasticsearch.SearchResult, error) {
	f.params = p
	return &elasticsearch.SearchResult{Total: 1, Items: []elasticsearch.Document{{ID: "r1"}}}, nil
}

func TestReports(t *testing.T) {
	store := &fakeStore{reports: map[string]domain.Report{"r1": {ID: "r1", Markdown: "# r1"}}}
	searcher := &fakeSearcher{}
	h := NewReportHandler(store, searcher, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /reports", h.ListReports)
	mux.HandleFunc("GET /reports/search", h.SearchReports)
	mux.HandleFunc("GET /reports/{id}", h.GetReport)

	t.Run("list with options", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports?limit=9999&offset=3&since=2026-01-01T00:00:00Z", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 500, store.opts.Limit)
		require.Equal(t, 3, store.opts.Offset)
		require.NotNil(t, store.opts.Since)
		require.Nil(t, store.opts.Until)
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/r1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "# r1", decode[domain.Report](t, rec).Markdown)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/nope", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("search", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/search?q=btc&verdict=YES&limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "btc", searcher.params.Query)
		require.Equal(t, "YES", searcher.params.Verdict)
		require.Equal(t, 5, searcher.params.Size)
	})

	t.Run("store failure", func(t *testing.T) {
		failing := NewReportHandler(&fakeStore{err: errors.New("db down")}, nil, testLogger())
		rec := httptest.NewRecorder()
		failing.ListReports(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.False(t, failing.CanSearch())

		rec = httptest.NewRecorder()
		failing.SearchReports(rec, httptest.NewRequest(http.MethodGet, "/reports/search", nil))
		require.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}
