// Package polymarket is the REST client for the Polymarket Gamma API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, timeout time.Duration) *GammaClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetEventsBySlug returns the events matching slug.
func (g *GammaClient) GetEventsBySlug(ctx context.Context, slug string) ([]APIEvent, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get events by slug %s: %w", slug, err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
	}
	return events, nil
}

// GetMarketsBySlug returns the markets matching slug.
func (g *GammaClient) GetMarketsBySlug(ctx context.Context, slug string) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets by slug %s: %w", slug, err)
	}

	var markets []APIMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	return markets, nil
}

// Snapshot resolves a polymarket.com URL into a market snapshot. The event
// endpoint is tried first; slugs that name a single market fall back to the
// market endpoint.
func (g *GammaClient) Snapshot(ctx context.Context, marketURL string) (domain.MarketSnapshot, error) {
	slug, err := SlugFromURL(marketURL)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	events, err := g.GetEventsBySlug(ctx, slug)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if len(events) > 0 && len(events[0].Markets) > 0 {
		return fromEvent(events[0], slug, marketURL), nil
	}

	markets, err := g.GetMarketsBySlug(ctx, slug)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	if len(markets) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}
	return fromMarket(markets[0], slug, marketURL), nil
}

// SlugFromURL returns the last non-empty path segment of a market URL.
func SlugFromURL(marketURL string) (string, error) {
	u, err := url.Parse(marketURL)
	if err != nil {
		return "", fmt.Errorf("polymarket: parse url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	slug := parts[len(parts)-1]
	if slug == "" {
		return "", fmt.Errorf("polymarket: no slug in url %q", marketURL)
	}
	return slug, nil
}

func fromEvent(e APIEvent, slug, marketURL string) domain.MarketSnapshot {
	m := e.Markets[0]
	for _, candidate := range e.Markets {
		if bool(candidate.Active) {
			m = candidate
			break
		}
	}
	yes, no := m.Prices()

	snap := domain.MarketSnapshot{
		ID:        firstNonEmpty(m.ID, e.ID),
		Title:     firstNonEmpty(e.Title, m.Question, slug),
		Category:  e.Category,
		Rules:     firstNonEmpty(e.Description, m.Description, m.ResolutionSource),
		Deadline:  parseTime(firstNonEmpty(e.EndDate, m.EndDate)),
		Liquidity: firstValid(e.Liquidity, m.Liquidity),
		Volume24h: firstValid(e.Volume24hr, m.Volume24hr),
		Prices:    domain.MarketPrices{Yes: yes, No: no},
		Venue:     domain.VenuePolymarket,
		URL:       marketURL,
	}
	return snap
}

func fromMarket(m APIMarket, slug, marketURL string) domain.MarketSnapshot {
	yes, no := m.Prices()
	return domain.MarketSnapshot{
		ID:        firstNonEmpty(m.ID, slug),
		Title:     firstNonEmpty(m.Question, slug),
		Category:  m.Category,
		Rules:     firstNonEmpty(m.Description, m.ResolutionSource),
		Deadline:  parseTime(m.EndDate),
		Liquidity: m.Liquidity.Ptr(),
		Volume24h: m.Volume24hr.Ptr(),
		Prices:    domain.MarketPrices{Yes: yes, No: no},
		Venue:     domain.VenuePolymarket,
		URL:       marketURL,
	}
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstValid(values ...flexFloat) *float64 {
	for _, v := range values {
		if v.Valid && v.Value != 0 {
			return v.Ptr()
		}
	}
	for _, v := range values {
		if v.Valid {
			return v.Ptr()
		}
	}
	return nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
