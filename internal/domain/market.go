package domain

import (
	"context"
	"time"
)

// Venue identifies the trading venue a market is listed on.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// MarketPrices holds the yes/no probabilities of a binary market. Either side
// may be absent when the venue does not quote it.
type MarketPrices struct {
	Yes *float64 `json:"yes"`
	No  *float64 `json:"no"`
}

// MarketSnapshot is the immutable view of a market taken once per request.
type MarketSnapshot struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Category  string       `json:"category,omitempty"`
	Rules     string       `json:"resolution_rules,omitempty"`
	Deadline  *time.Time   `json:"deadline,omitempty"`
	Liquidity *float64     `json:"liquidity,omitempty"`
	Volume24h *float64     `json:"volume_24h,omitempty"`
	Prices    MarketPrices `json:"prices"`
	Venue     Venue        `json:"venue"`
	URL       string       `json:"url"`
}

// MarketSource resolves a market URL into a snapshot.
type MarketSource interface {
	Fetch(ctx context.Context, marketURL string) (MarketSnapshot, error)
}

// TrendingMarket is a summary row returned by the trending endpoint.
type TrendingMarket struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Volume string  `json:"volume"`
	URL    string  `json:"url"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
