package signals

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const rssCredibility = 0.75

// RSS searches the Google News RSS search feed.
type RSS struct {
	feedURL    string
	maxResults int
	httpClient *http.Client
}

// NewRSS creates an RSS provider. feedURL must contain a single %s verb that
// receives the escaped query.
func NewRSS(feedURL string, maxResults int) *RSS {
	if feedURL == "" {
		feedURL = "https://news.google.com/rss/search?q=%s&hl=en&gl=US&ceid=US:en"
	}
	return &RSS{
		feedURL:    feedURL,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *RSS) Name() string { return "rss" }

type rssFeed struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (r *RSS) Search(ctx context.Context, query string) ([]domain.SignalRecord, error) {
	feedURL := fmt.Sprintf(r.feedURL, url.QueryEscape(query))
	body, err := get(ctx, r.httpClient, feedURL, http.Header{
		"User-Agent": {"Mozilla/5.0"},
	})
	if err != nil {
		return nil, fmt.Errorf("signals/rss: fetch: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("signals/rss: decode: %w", err)
	}

	provider := feed.Channel.Title
	if provider == "" {
		provider = "Google News RSS"
	}

	limit := r.maxResults * 2
	seen := make(map[string]struct{})
	records := make([]domain.SignalRecord, 0)
	for i, item := range feed.Channel.Items {
		if i >= r.maxResults || len(records) >= limit {
			break
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "Untitled"
		}
		snippet := strings.TrimSpace(item.Description)
		if snippet == "" {
			snippet = title
		}
		snippet = truncate(snippet, maxSnippetChars)
		records = append(records, domain.SignalRecord{
			Provider:    provider,
			Kind:        domain.SignalKindNews,
			Title:       title,
			URL:         link,
			Snippet:     snippet,
			Timestamp:   parseTime(item.PubDate, time.RFC1123Z, time.RFC1123),
			Sentiment:   Sentiment(snippet),
			Credibility: rssCredibility,
		})
	}
	return records, nil
}
