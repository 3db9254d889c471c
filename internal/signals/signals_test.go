package signals

import (
	"context"
	"errors"
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

type fakeProvider struct {
	name  string
	delay time.Duration
	out   []domain.SignalRecord
	err   error
	query string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, query string) ([]domain.SignalRecord, error) {
	f.query = query
	time.Sleep(f.delay)
	return f.out, f.err
}

func TestBuildQuery(t *testing.T) {
	require.Equal(t, "Will Bitcoin reach $100k by 2025", BuildQuery("Will Bitcoin reach $100k by 2025?"))
	require.Equal(t, "the Fed cut rates", BuildQuery("When will the Fed cut rates?"))
	long := BuildQuery(string(make([]byte, 300)) + "x")
	require.LessOrEqual(t, len(long), 100)
}

func TestGatherKeepsProviderOrder(t *testing.T) {
	slow := &fakeProvider{name: "news", delay: 30 * time.Millisecond, out: []domain.SignalRecord{{Title: "a"}}}
	failing := &fakeProvider{name: "x", err: errors.New("boom")}
	fast := &fakeProvider{name: "rss", out: []domain.SignalRecord{{Title: "b"}, {Title: "c"}}}

	agg := NewAggregator(testLogger(), slow, failing, fast)
	out, err := agg.Gather(context.Background(), domain.MarketSnapshot{Title: "Will it rain?"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "a", out[0].Title)
	require.Equal(t, "b", out[1].Title)
	require.Equal(t, "c", out[2].Title)
	require.Equal(t, "Will it rain", slow.query)
}

func TestGatherNoProviders(t *testing.T) {
	out, err := NewAggregator(testLogger()).Gather(context.Background(), domain.MarketSnapshot{Title: "x"})
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestSentiment(t *testing.T) {
	require.Equal(t, domain.SentimentPro, Sentiment("Stocks rise on news"))
	require.Equal(t, domain.SentimentCon, Sentiment("Senate may reject bill"))
	require.Equal(t, domain.SentimentNeutral, Sentiment("Nothing happened"))
}

func TestNewsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/everything", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		q := r.URL.Query()
		require.Equal(t, "bitcoin", q.Get("q"))
		require.Equal(t, "5", q.Get("pageSize"))
		require.Equal(t, "2025-01-02", q.Get("from"))
		_, _ = w.Write([]byte(`{"articles":[
			{"source":{"name":"Reuters"},"title":"BTC gains","description":"Prices gain again","url":"https://r.test/1","publishedAt":"2025-02-01T10:00:00Z"},
			{"source":{},"title":"","content":"fallback content","url":"https://r.test/2"}
		]}`))
	}))
	defer srv.Close()

	n := NewNewsAPI(srv.URL, "secret", 30, 5)
	n.now = func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) }

	out, err := n.Search(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Reuters", out[0].Provider)
	require.Equal(t, domain.SentimentPro, out[0].Sentiment)
	require.InDelta(t, 0.8, out[0].Credibility, 1e-9)
	require.NotNil(t, out[0].Timestamp)
	require.Equal(t, "newsapi", out[1].Provider)
	require.Equal(t, "Untitled", out[1].Title)
	require.Equal(t, "fallback content", out[1].Snippet)
}

func TestNewsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewNewsAPI(srv.URL, "bad", 0, 5).Search(context.Background(), "q")
	require.Error(t, err)
}

func TestX(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "10", r.URL.Query().Get("max_results"))
		require.Equal(t, "author_id", r.URL.Query().Get("expansions"))
		_, _ = w.Write([]byte(`{
			"data":[
				{"id":"1","text":"We will win","author_id":"u1","created_at":"2025-01-01T00:00:00Z","public_metrics":{"like_count":90,"retweet_count":10,"reply_count":5}},
				{"id":"2","text":"meh","author_id":"u9","public_metrics":{"like_count":3}}
			],
			"includes":{"users":[{"id":"u1","username":"alice","verified":true}]}
		}`))
	}))
	defer srv.Close()

	out, err := NewX(srv.URL, "tok", 25).Search(context.Background(), "Will it happen?")
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.Equal(t, "@alice", out[0].Provider)
	require.Equal(t, domain.SignalKindSocial, out[0].Kind)
	require.Equal(t, "https://twitter.com/alice/status/1", out[0].URL)
	require.Equal(t, 105, *out[0].Engagement)
	require.InDelta(t, 0.9, out[0].Credibility, 1e-9)

	require.Equal(t, "@unknown", out[1].Provider)
	require.InDelta(t, 0.5, out[1].Credibility, 1e-9)
}

func TestXCredibility(t *testing.T) {
	require.InDelta(t, 0.6, xCredibility(false, 11), 1e-9)
	require.InDelta(t, 0.7, xCredibility(false, 101), 1e-9)
	require.InDelta(t, 0.9, xCredibility(true, 500), 1e-9)
}

func TestRSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "fed rates", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Google News</title>
<item><title>Fed may reject cut</title><link>https://n.test/1</link><description>Officials reject</description><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>
<item><title>Dup</title><link>https://n.test/1</link></item>
<item><title>No link</title></item>
<item><title>Third</title><link>https://n.test/3</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	out, err := NewRSS(srv.URL+"/rss?q=%s", 10).Search(context.Background(), "fed rates")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Google News", out[0].Provider)
	require.Equal(t, domain.SentimentCon, out[0].Sentiment)
	require.NotNil(t, out[0].Timestamp)
	require.Equal(t, "Third", out[1].Title)
	require.Equal(t, "Third", out[1].Snippet)
	require.InDelta(t, 0.75, out[1].Credibility, 1e-9)
}

func TestOffline(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out, err := Offline{Now: func() time.Time { return now }}.Gather(context.Background(), domain.MarketSnapshot{Title: "T", URL: "u"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "offline-news", out[0].Provider)
	require.Equal(t, "Offline insight for T", out[0].Title)
	require.Equal(t, now, *out[0].Timestamp)
}
