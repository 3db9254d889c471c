package kalshi

// --------------------------------------------------------------------------
// Kalshi API DTOs
// --------------------------------------------------------------------------

// KalshiMarket represents a market as returned by the Kalshi REST API.
// Prices are quoted in cents (1-99).
type KalshiMarket struct {
	Ticker         string  `json:"ticker"`
	EventTicker    string  `json:"event_ticker"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Status         string  `json:"status"` // "open", "closed", "settled"
	Category       string  `json:"category"`
	RulesPrimary   string  `json:"rules_primary"`
	RulesSecondary string  `json:"rules_secondary"`
	YesBid         float64 `json:"yes_bid"`
	YesAsk         float64 `json:"yes_ask"`
	NoBid          float64 `json:"no_bid"`
	NoAsk          float64 `json:"no_ask"`
	LastPrice      float64 `json:"last_price"`
	Volume         int64   `json:"volume"`
	Volume24H      *int64  `json:"volume_24h"`
	OpenInterest   int64   `json:"open_interest"`
	Liquidity      *int64  `json:"liquidity"`
	CloseTime      string  `json:"close_time"`
	ExpirationTime string  `json:"expiration_time"`
}

// KalshiErrorResponse represents a Kalshi API error response.
type KalshiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// YesProbability converts the market's yes quote into a probability in
// [0,1]. The last traded price wins; otherwise the bid/ask midpoint.
func (m *KalshiMarket) YesProbability() *float64 {
	switch {
	case m.LastPrice > 0:
		return cents(m.LastPrice)
	case m.YesBid > 0 || m.YesAsk > 0:
		return cents(midpoint(m.YesBid, m.YesAsk))
	default:
		return nil
	}
}

// NoProbability converts the no quote into a probability, falling back to
// the complement of the yes side.
func (m *KalshiMarket) NoProbability() *float64 {
	if m.NoBid > 0 || m.NoAsk > 0 {
		return cents(midpoint(m.NoBid, m.NoAsk))
	}
	if yes := m.YesProbability(); yes != nil {
		no := 1 - *yes
		return &no
	}
	return nil
}

func midpoint(bid, ask float64) float64 {
	if bid <= 0 {
		return ask
	}
	if ask <= 0 {
		return bid
	}
	return (bid + ask) / 2
}

func cents(v float64) *float64 {
	p := v / 100
	return &p
}
