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

const maxXQueryChars = 500

// X searches recent posts through the X (Twitter) API v2.
type X struct {
	baseURL     string
	bearerToken string
	maxResults  int
	httpClient  *http.Client
}

// NewX creates an X provider.
func NewX(baseURL, bearerToken string, maxResults int) *X {
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}
	return &X{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bearerToken: bearerToken,
		maxResults:  maxResults,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (x *X) Name() string { return "x" }

type xResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		AuthorID      string `json:"author_id"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Verified bool   `json:"verified"`
		} `json:"users"`
	} `json:"includes"`
}

func (x *X) Search(ctx context.Context, query string) ([]domain.SignalRecord, error) {
	q := strings.ReplaceAll(query, "?", "")
	q = strings.TrimSpace(strings.ReplaceAll(q, "Will", ""))
	q = truncate(q, maxXQueryChars)

	params := url.Values{}
	params.Set("query", q)
	params.Set("max_results", strconv.Itoa(min(x.maxResults, 10)))
	params.Set("tweet.fields", "created_at,public_metrics,lang")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,verified")

	body, err := get(ctx, x.httpClient, x.baseURL+"/2/tweets/search/recent?"+params.Encode(), http.Header{
		"Authorization": {"Bearer " + x.bearerToken},
	})
	if err != nil {
		return nil, fmt.Errorf("signals/x: search: %w", err)
	}

	var resp xResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("signals/x: decode: %w", err)
	}

	type user struct {
		name     string
		verified bool
	}
	users := make(map[string]user, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		users[u.ID] = user{name: u.Username, verified: u.Verified}
	}

	records := make([]domain.SignalRecord, 0, len(resp.Data))
	for _, t := range resp.Data {
		u, ok := users[t.AuthorID]
		if !ok || u.name == "" {
			u.name = "unknown"
		}
		m := t.PublicMetrics
		engagement := m.LikeCount + m.RetweetCount + m.ReplyCount

		var link string
		if t.ID != "" {
			link = fmt.Sprintf("https://twitter.com/%s/status/%s", u.name, t.ID)
		}
		records = append(records, domain.SignalRecord{
			Provider:    "@" + u.name,
			Kind:        domain.SignalKindSocial,
			Title:       "Tweet by @" + u.name,
			URL:         link,
			Snippet:     truncate(t.Text, maxSnippetChars),
			Timestamp:   parseTime(t.CreatedAt),
			Sentiment:   Sentiment(t.Text),
			Credibility: xCredibility(u.verified, engagement),
			Engagement:  &engagement,
		})
	}
	return records, nil
}

func xCredibility(verified bool, engagement int) float64 {
	c := 0.5
	if verified {
		c += 0.2
	}
	switch {
	case engagement > 100:
		c += 0.2
	case engagement > 10:
		c += 0.1
	}
	return min(c, 1.0)
}
