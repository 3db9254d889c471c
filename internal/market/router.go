// Package market resolves market URLs to venue clients.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// VenueClient fetches a snapshot from a single venue.
type VenueClient interface {
	Snapshot(ctx context.Context, marketURL string) (domain.MarketSnapshot, error)
}

// Router implements domain.MarketSource by dispatching on the URL host.
type Router struct {
	polymarket VenueClient
	kalshi     VenueClient
	offline    bool
	now        func() time.Time
	logger     *slog.Logger
}

// NewRouter creates a Router. When offline is true no venue client is
// called and stub snapshots are returned instead.
func NewRouter(polymarket, kalshi VenueClient, offline bool, logger *slog.Logger) *Router {
	return &Router{
		polymarket: polymarket,
		kalshi:     kalshi,
		offline:    offline,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "market_router")),
	}
}

// DetectVenue maps a market URL to its venue.
func DetectVenue(marketURL string) (domain.Venue, error) {
	u, err := url.Parse(marketURL)
	if err != nil {
		return "", fmt.Errorf("parse market url: %w", err)
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "polymarket"):
		return domain.VenuePolymarket, nil
	case strings.Contains(host, "kalshi"):
		return domain.VenueKalshi, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedHost, host)
	}
}

// Fetch returns the snapshot for marketURL.
func (r *Router) Fetch(ctx context.Context, marketURL string) (domain.MarketSnapshot, error) {
	venue, err := DetectVenue(marketURL)
	if err != nil {
		return domain.MarketSnapshot{}, &domain.FetchError{Op: "market", URL: marketURL, Err: err}
	}

	if r.offline {
		return Offline(marketURL, venue, r.now()), nil
	}

	client := r.polymarket
	if venue == domain.VenueKalshi {
		client = r.kalshi
	}
	if client == nil {
		return domain.MarketSnapshot{}, &domain.FetchError{
			Op: "market", URL: marketURL, Err: fmt.Errorf("no client configured for %s", venue),
		}
	}

	start := time.Now()
	snap, err := client.Snapshot(ctx, marketURL)
	if err != nil {
		r.logger.WarnContext(ctx, "market fetch failed",
			slog.String("venue", string(venue)),
			slog.String("url", marketURL),
			slog.String("error", err.Error()),
		)
		return domain.MarketSnapshot{}, &domain.FetchError{Op: "market", URL: marketURL, Err: err}
	}

	r.logger.DebugContext(ctx, "market fetched",
		slog.String("venue", string(venue)),
		slog.String("market_id", snap.ID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// Offline returns the stub snapshot used when network access is disabled.
func Offline(marketURL string, venue domain.Venue, now time.Time) domain.MarketSnapshot {
	name := string(venue)
	deadline := now.UTC().Add(7 * 24 * time.Hour)
	return domain.MarketSnapshot{
		ID:        "offline-" + name,
		Title:     "Offline " + strings.ToUpper(name[:1]) + name[1:] + " market",
		Category:  "offline",
		Rules:     "Offline mode is enabled; this is stubbed data.",
		Deadline:  &deadline,
		Liquidity: domain.Float64(10000),
		Volume24h: domain.Float64(5000),
		Prices:    domain.MarketPrices{Yes: domain.Float64(0.5), No: domain.Float64(0.5)},
		Venue:     venue,
		URL:       marketURL,
	}
}
