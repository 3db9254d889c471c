package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const marketPage = `<!doctype html>
<html><head><meta name="description" content="Meta rules"></head>
<body>
  <div data-testid="resolution-criteria"><p>Resolves <strong>YES</strong> if BTC closes above 100k.</p></div>
  <div class="CommentList">
    <div data-testid="comment-item">
      <span data-testid="comment-author">alice</span>
      <p>I think this is likely a win for the bulls @bob</p>
    </div>
    <div data-testid="comment-item"><p>short</p></div>
    <div data-testid="comment-item">
      <span data-testid="comment-author">carol</span>
      <p>Unlikely, they will lose momentum before the deadline.</p>
    </div>
  </div>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "polyseek-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(marketPage))
	}))
	defer srv.Close()

	s := New(Config{UserAgent: "polyseek-test", MaxComments: 5, MaxCommentChars: 500}, testLogger())
	ec, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Contains(t, ec.Rules, "Resolves")
	require.Contains(t, ec.Rules, "BTC closes above 100k")

	// The list wrapper matches the class selector and comes first.
	var bodies []string
	for _, c := range ec.Comments {
		bodies = append(bodies, c.Body)
		require.NotEmpty(t, c.ID)
	}
	require.GreaterOrEqual(t, len(ec.Comments), 2)
	require.Contains(t, strings.Join(bodies, "|"), "alice I think this is likely a win for the bulls @bob")
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(Config{}, testLogger()).Fetch(context.Background(), srv.URL)
	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "context", fe.Op)
}

func TestExtractRulesFallbacks(t *testing.T) {
	t.Run("heading paragraph", func(t *testing.T) {
		doc := parse(t, `<html><body><h2>Resolution Details</h2><div><p>Paragraph rules here.</p></div></body></html>`)
		require.Equal(t, "Paragraph rules here.", extractRules(doc))
	})
	t.Run("meta description", func(t *testing.T) {
		doc := parse(t, `<html><head><meta name="description" content="Meta rules"></head><body><h2>Other</h2></body></html>`)
		require.Equal(t, "Meta rules", extractRules(doc))
	})
	t.Run("nothing", func(t *testing.T) {
		require.Equal(t, "", extractRules(parse(t, `<html><body></body></html>`)))
	})
}

func TestExtractComments(t *testing.T) {
	doc := parse(t, `<html><body>
		<div data-testid="comment"><span data-testid="author">alice</span> yes yes this will win for sure</div>
		<div data-testid="comment">tiny</div>
		<div data-testid="comment">they will lose, no chance at all here</div>
		<div data-testid="comment">third comment that is long enough</div>
	</body></html>`)

	comments := extractComments(doc, 2, 20)
	require.Len(t, comments, 2)

	require.Equal(t, anonymize("alice"), comments[0].Author)
	require.Regexp(t, `^user_\d{4}$`, comments[0].Author)
	require.Equal(t, "alice yes yes this w", comments[0].Body)
	require.Equal(t, domain.SentimentPro, comments[0].Sentiment)

	require.Equal(t, "", comments[1].Author)
	require.Equal(t, domain.SentimentCon, comments[1].Sentiment)
}

func TestHeuristicSentiment(t *testing.T) {
	tests := []struct {
		text string
		want domain.Sentiment
	}{
		{"Likely a win", domain.SentimentPro},
		{"Unlikely, bear market", domain.SentimentCon},
		{"yes but no", domain.SentimentNeutral},
		{"I know nothing", domain.SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			require.Equal(t, tt.want, heuristicSentiment(tt.text, proWords, conWords))
		})
	}
}

func TestMentionRatio(t *testing.T) {
	require.InDelta(t, 0.5, mentionRatio("@a hello @b world"), 1e-9)
	require.InDelta(t, 1.0, mentionRatio("@a"), 1e-9)
	require.InDelta(t, 0.0, mentionRatio(""), 1e-9)
}

func TestOffline(t *testing.T) {
	ec, err := Offline{}.Fetch(context.Background(), "https://polymarket.com/event/x")
	require.NoError(t, err)
	require.Equal(t, offlineRules, ec.Rules)
	require.Len(t, ec.Comments, 1)
	require.Equal(t, domain.SentimentNeutral, ec.Comments[0].Sentiment)
}
