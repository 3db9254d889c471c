// Package signals gathers external news and social evidence about a market.
package signals

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const (
	maxQueryChars   = 100
	maxSnippetChars = 280
)

// Provider searches one external source.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]domain.SignalRecord, error)
}

// Aggregator implements domain.SignalSource by fanning a query out to every
// configured provider.
type Aggregator struct {
	providers []Provider
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator. Output order follows provider order.
func NewAggregator(logger *slog.Logger, providers ...Provider) *Aggregator {
	return &Aggregator{
		providers: providers,
		logger:    logger.With(slog.String("component", "signals")),
	}
}

// Gather queries every provider concurrently. Provider failures are logged
// and dropped.
func (a *Aggregator) Gather(ctx context.Context, market domain.MarketSnapshot) ([]domain.SignalRecord, error) {
	query := BuildQuery(market.Title)
	if query == "" || len(a.providers) == 0 {
		return []domain.SignalRecord{}, nil
	}

	slots := make([][]domain.SignalRecord, len(a.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range a.providers {
		g.Go(func() error {
			start := time.Now()
			records, err := p.Search(gctx, query)
			if err != nil {
				a.logger.WarnContext(gctx, "signal provider failed",
					slog.String("provider", p.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			slots[i] = records
			a.logger.DebugContext(gctx, "signal provider done",
				slog.String("provider", p.Name()),
				slog.Int("records", len(records)),
				slog.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.SignalRecord, 0)
	for _, records := range slots {
		out = append(out, records...)
	}
	return out, nil
}

// BuildQuery turns a market title into a search query.
func BuildQuery(title string) string {
	q := strings.ReplaceAll(title, "?", "")
	q = strings.ReplaceAll(q, "When will", "")
	q = strings.ReplaceAll(q, "will", "")
	q = strings.TrimSpace(q)
	return strings.TrimSpace(truncate(q, maxQueryChars))
}

// Sentiment tags text by keyword presence. Pro keywords win ties.
func Sentiment(text string) domain.Sentiment {
	lowered := strings.ToLower(text)
	for _, w := range []string{"rise", "win", "approve", "gain"} {
		if strings.Contains(lowered, w) {
			return domain.SentimentPro
		}
	}
	for _, w := range []string{"fall", "lose", "reject", "decline"} {
		if strings.Contains(lowered, w) {
			return domain.SentimentCon
		}
	}
	return domain.SentimentNeutral
}

// Offline is the SignalSource used when network access is disabled.
type Offline struct {
	Now func() time.Time
}

// Gather returns a single stub signal.
func (o Offline) Gather(_ context.Context, market domain.MarketSnapshot) ([]domain.SignalRecord, error) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	ts := now().UTC()
	return []domain.SignalRecord{{
		Provider:    "offline-news",
		Kind:        domain.SignalKindNews,
		Title:       "Offline insight for " + market.Title,
		URL:         market.URL,
		Snippet:     "Offline mode stub signal.",
		Timestamp:   &ts,
		Sentiment:   domain.SentimentNeutral,
		Credibility: 0.5,
	}}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func parseTime(s string, layouts ...string) *time.Time {
	if s == "" {
		return nil
	}
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339Nano, time.RFC3339}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
