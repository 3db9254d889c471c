// Package kalshi is the REST client for the Kalshi exchange API.
package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Client is the REST client for the Kalshi exchange API.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
}

// NewClient creates a new Kalshi REST client.
//
// baseURL is the API root, e.g. "https://api.elections.kalshi.com/trade-api/v2".
// apiKeyID is the Kalshi API key identifier and may be empty; market data
// endpoints are public.
func NewClient(baseURL, apiKeyID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// GetMarket returns a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (KalshiMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(ticker))

	body, err := c.doRequest(ctx, path)
	if err != nil {
		return KalshiMarket{}, fmt.Errorf("kalshi: get market %s: %w", ticker, err)
	}

	var resp struct {
		Market KalshiMarket `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return KalshiMarket{}, fmt.Errorf("kalshi: decode market: %w", err)
	}

	return resp.Market, nil
}

// Snapshot resolves a kalshi.com market URL into a market snapshot.
func (c *Client) Snapshot(ctx context.Context, marketURL string) (domain.MarketSnapshot, error) {
	ticker, err := TickerFromURL(marketURL)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	m, err := c.GetMarket(ctx, ticker)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	snap := domain.MarketSnapshot{
		ID:       ticker,
		Title:    m.Title,
		Category: m.EventTicker,
		Rules:    strings.TrimSpace(m.RulesPrimary + " " + m.RulesSecondary),
		Prices: domain.MarketPrices{
			Yes: m.YesProbability(),
			No:  m.NoProbability(),
		},
		Venue: domain.VenueKalshi,
		URL:   marketURL,
	}
	if m.Ticker != "" {
		snap.ID = m.Ticker
	}
	if snap.Title == "" {
		snap.Title = ticker
	}
	if m.Category != "" {
		snap.Category = m.Category
	}
	if t, err := time.Parse(time.RFC3339, m.CloseTime); err == nil {
		t = t.UTC()
		snap.Deadline = &t
	}
	if m.Liquidity != nil {
		snap.Liquidity = domain.Float64(float64(*m.Liquidity))
	}
	if m.Volume24H != nil {
		snap.Volume24h = domain.Float64(float64(*m.Volume24H))
	}
	return snap, nil
}

// TickerFromURL returns the uppercased last path segment of a market URL.
func TickerFromURL(marketURL string) (string, error) {
	u, err := url.Parse(marketURL)
	if err != nil {
		return "", fmt.Errorf("kalshi: parse url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	ticker := parts[len(parts)-1]
	if ticker == "" {
		return "", fmt.Errorf("kalshi: no ticker in url %q", marketURL)
	}
	return strings.ToUpper(ticker), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, optionally signs, sends, and reads a GET request
// against the Kalshi API.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	switch {
	case c.privateKey != nil:
		if err := c.signRequest(req, http.MethodGet, req.URL.Path); err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
	case c.apiKeyID != "":
		req.Header.Set("kalshi-access-key", c.apiKeyID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over the timestamp + method + path
// message string.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + method + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	return nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors.
func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s)", domain.ErrNotFound, apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s (%s)", domain.ErrUnauthorized, apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s (%s)", domain.ErrRateLimited, apiErr.Message, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}
