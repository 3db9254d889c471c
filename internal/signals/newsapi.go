package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const newsCredibility = 0.8

// NewsAPI searches newsapi.org /v2/everything.
type NewsAPI struct {
	baseURL    string
	apiKey     string
	windowDays int
	maxResults int
	httpClient *http.Client
	now        func() time.Time
}

// NewNewsAPI creates a NewsAPI provider.
func NewNewsAPI(baseURL, apiKey string, windowDays, maxResults int) *NewsAPI {
	if baseURL == "" {
		baseURL = "https://newsapi.org"
	}
	return &NewsAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		windowDays: windowDays,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

type newsResponse struct {
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Search(ctx context.Context, query string) ([]domain.SignalRecord, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(n.maxResults))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	if n.windowDays > 0 {
		params.Set("from", n.now().UTC().AddDate(0, 0, -n.windowDays).Format("2006-01-02"))
	}

	body, err := get(ctx, n.httpClient, n.baseURL+"/v2/everything?"+params.Encode(), http.Header{
		"X-Api-Key": {n.apiKey},
	})
	if err != nil {
		return nil, fmt.Errorf("signals/newsapi: search: %w", err)
	}

	var resp newsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("signals/newsapi: decode: %w", err)
	}

	records := make([]domain.SignalRecord, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		snippet := a.Description
		if snippet == "" {
			snippet = a.Content
		}
		snippet = truncate(snippet, maxSnippetChars)
		provider := a.Source.Name
		if provider == "" {
			provider = "newsapi"
		}
		title := a.Title
		if title == "" {
			title = "Untitled"
		}
		records = append(records, domain.SignalRecord{
			Provider:    provider,
			Kind:        domain.SignalKindNews,
			Title:       title,
			URL:         a.URL,
			Snippet:     snippet,
			Timestamp:   parseTime(a.PublishedAt),
			Sentiment:   Sentiment(snippet),
			Credibility: newsCredibility,
		})
	}
	return records, nil
}
