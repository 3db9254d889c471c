package handler

import "net/http"

// TrendingMarket is a market summary shown on the landing page.
type TrendingMarket struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Price  string `json:"price"`
	Volume string `json:"volume"`
	URL    string `json:"url"`
}

// trendingMarkets is a fixed showcase list; it is not fetched from a venue.
var trendingMarkets = []TrendingMarket{
	{
		ID:     1,
		Title:  "Will Bitcoin hit $100k in 2024?",
		Price:  "0.65",
		Volume: "$12M",
		URL:    "https://polymarket.com/event/will-bitcoin-hit-100k-in-2024",
	},
	{
		ID:     2,
		Title:  "Russia x Ukraine Ceasefire in 2025?",
		Price:  "0.15",
		Volume: "$5M",
		URL:    "https://polymarket.com/event/russia-x-ukraine-ceasefire-in-2025",
	},
	{
		ID:     3,
		Title:  "Will AI surpass human performance in coding by 2026?",
		Price:  "0.42",
		Volume: "$1.8M",
		URL:    "https://polymarket.com/event/ai-coding-2026",
	},
}

// TrendingHandler serves the showcase market list.
type TrendingHandler struct{}

// NewTrendingHandler creates a TrendingHandler.
func NewTrendingHandler() *TrendingHandler {
	return &TrendingHandler{}
}

// ListTrending returns the showcase markets.
// GET /trending
func (h *TrendingHandler) ListTrending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, trendingMarkets)
}
