// Package llm provides CompletionService implementations: an
// OpenAI-compatible chat-completions client guarded by a circuit breaker,
// and a deterministic stub.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	modelPrefix    = "openrouter/"
	maxBodyBytes   = 10 * 1024 * 1024
	maxErrorBody   = 512
)

// BreakerConfig tunes the circuit breaker around completion calls.
type BreakerConfig struct {
	FailureThreshold uint
	FailureWindow    uint
	Delay            time.Duration
	SuccessThreshold uint
}

// Config holds connection settings for the chat-completions endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client calls an OpenAI-compatible chat-completions API. Calls are never
// retried; the breaker only stops hammering a backend that keeps failing.
type Client struct {
	cfg        Config
	httpClient *http.Client
	executor   failsafe.Executor[string]
	logger     *slog.Logger
}

var _ domain.CompletionService = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.FailureWindow < cfg.Breaker.FailureThreshold {
		cfg.Breaker.FailureWindow = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.Delay <= 0 {
		cfg.Breaker.Delay = 30 * time.Second
	}
	if cfg.Breaker.SuccessThreshold == 0 {
		cfg.Breaker.SuccessThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "llm"))

	cb := circuitbreaker.NewBuilder[string]().
		WithFailureThresholdRatio(cfg.Breaker.FailureThreshold, cfg.Breaker.FailureWindow).
		WithDelay(cfg.Breaker.Delay).
		WithSuccessThreshold(cfg.Breaker.SuccessThreshold).
		HandleIf(func(_ string, err error) bool {
			return countsAgainstBreaker(err)
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Warn("completion circuit breaker state change",
				slog.String("from", fmt.Sprint(event.OldState)),
				slog.String("to", fmt.Sprint(event.NewState)),
			)
		}).
		Build()

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		executor:   failsafe.With[string](cb),
		logger:     logger,
	}
}

// Complete sends req and returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", &domain.CompletionError{Cause: domain.CauseAuthentication, Err: errors.New("api key not configured")}
	}

	body := chatRequest{
		Model:       strings.TrimPrefix(req.Model, modelPrefix),
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.StrictJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &domain.CompletionError{Cause: domain.CauseUnknown, Err: fmt.Errorf("llm: marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	out, err := c.executor.WithContext(ctx).Get(func() (string, error) {
		return c.do(ctx, payload)
	})
	if err != nil {
		var ce *domain.CompletionError
		if errors.As(err, &ce) {
			return "", ce
		}
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return "", &domain.CompletionError{Cause: domain.CauseTransport, Err: fmt.Errorf("llm: %w", err)}
		}
		return "", &domain.CompletionError{Cause: domain.CauseTransport, Err: err}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &domain.CompletionError{Cause: domain.CauseUnknown, Err: fmt.Errorf("llm: create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.CompletionError{Cause: domain.CauseTransport, Err: fmt.Errorf("llm: request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &domain.CompletionError{Cause: domain.CauseTransport, Err: fmt.Errorf("llm: read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return "", &domain.CompletionError{
			Cause: domain.CauseForStatus(resp.StatusCode),
			Err:   fmt.Errorf("llm: status %d: %s", resp.StatusCode, msg),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &domain.CompletionError{Cause: domain.CauseUnknown, Err: fmt.Errorf("llm: decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &domain.CompletionError{Cause: domain.CauseUnknown, Err: fmt.Errorf("llm: api error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &domain.CompletionError{Cause: domain.CauseUnknown, Err: errors.New("llm: no completion returned")}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	c.logger.DebugContext(ctx, "completion done",
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("chars", len(content)),
		slog.String("finish_reason", parsed.Choices[0].FinishReason),
	)
	return content, nil
}

// countsAgainstBreaker ignores authentication failures: they are a
// configuration problem, not backend health.
func countsAgainstBreaker(err error) bool {
	if err == nil {
		return false
	}
	var ce *domain.CompletionError
	if errors.As(err, &ce) {
		return ce.Cause != domain.CauseAuthentication
	}
	return true
}
