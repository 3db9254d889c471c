package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{Addresses: []string{srv.URL}, Index: "polyseek-reports"}, testLogger())
	require.NoError(t, err)
	return c
}

func sample() domain.Report {
	return domain.Report{
		ID:          "run-3",
		MarketURL:   "https://polymarket.com/event/btc",
		MarketID:    "pm-1",
		MarketTitle: "BTC 100k?",
		Venue:       domain.VenuePolymarket,
		Depth:       domain.DepthQuick,
		Perspective: domain.PerspectiveNeutral,
		Result: domain.AnalysisResult{
			Verdict:       domain.VerdictYes,
			ConfidencePct: 72,
			Summary:       "momentum",
			KeyDrivers:    []domain.Driver{{Text: "ETF flows", SourceIDs: []string{"m1"}}},
		},
		Markdown:  "# BTC",
		CreatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublishIndexesDocument(t *testing.T) {
	var gotPath, gotMethod string
	var doc Document
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	require.Equal(t, "search_index", c.Name())
	require.NoError(t, c.Publish(context.Background(), sample()))
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "/polyseek-reports/_doc/run-3", gotPath)
	require.Equal(t, "YES", doc.Verdict)
	require.Equal(t, []string{"ETF flows"}, doc.Drivers)
}

func TestPublishErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	})
	err := c.Publish(context.Background(), sample())
	require.ErrorContains(t, err, "mapper_parsing_exception")
}

func TestSearch(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/polyseek-reports/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"run-3","verdict":"YES","market_title":"BTC 100k?"}}]}}`))
	})

	res, err := c.Search(context.Background(), SearchParams{Query: "btc", Verdict: "YES", Size: 500})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	require.Equal(t, "run-3", res.Items[0].ID)
	require.EqualValues(t, 100, body["size"])
}

func TestSearchBodyDefaults(t *testing.T) {
	body := searchBody(SearchParams{From: -4})
	require.Equal(t, 0, body["from"])
	require.Equal(t, 20, body["size"])

	q := body["query"].(map[string]any)["bool"].(map[string]any)
	require.Contains(t, q, "must")
	require.NotContains(t, q, "filter")
}
