// Package scrape extracts resolution rules and discussion comments from
// market pages.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const offlineRules = "Offline mode: resolution text unavailable."

// Config holds scraper limits.
type Config struct {
	Timeout         time.Duration
	UserAgent       string
	MaxComments     int
	MaxCommentChars int
}

// Scraper implements domain.ContextSource over plain HTTP.
type Scraper struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Scraper.
func New(cfg Config, logger *slog.Logger) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxComments <= 0 {
		cfg.MaxComments = 20
	}
	if cfg.MaxCommentChars <= 0 {
		cfg.MaxCommentChars = 500
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(slog.String("component", "scraper")),
	}
}

// Fetch downloads marketURL and extracts its evidence context.
func (s *Scraper) Fetch(ctx context.Context, marketURL string) (domain.EvidenceContext, error) {
	body, err := s.download(ctx, marketURL)
	if err != nil {
		return domain.EvidenceContext{}, &domain.FetchError{Op: "context", URL: marketURL, Err: err}
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return domain.EvidenceContext{}, &domain.FetchError{Op: "context", URL: marketURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	ec := domain.EvidenceContext{
		Rules:    extractRules(doc),
		Comments: extractComments(doc, s.cfg.MaxComments, s.cfg.MaxCommentChars),
	}
	s.logger.DebugContext(ctx, "context scraped",
		slog.String("url", marketURL),
		slog.Bool("has_rules", ec.Rules != ""),
		slog.Int("comments", len(ec.Comments)),
	)
	return ec, nil
}

func (s *Scraper) download(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Offline is the ContextSource used when network access is disabled.
type Offline struct{}

// Fetch returns the fixed offline context.
func (Offline) Fetch(context.Context, string) (domain.EvidenceContext, error) {
	return domain.EvidenceContext{
		Rules: offlineRules,
		Comments: []domain.Comment{{
			ID:        "offline-1",
			Author:    "user_offline",
			Body:      "This is offline mode. Replace with real comments when online.",
			Sentiment: domain.SentimentNeutral,
		}},
	}, nil
}
