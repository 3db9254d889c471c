package domain

import "context"

// Sentiment is a coarse stance tag attached to comments and signals.
type Sentiment string

const (
	SentimentPro     Sentiment = "pro"
	SentimentCon     Sentiment = "con"
	SentimentNeutral Sentiment = "neutral"
)

// Comment is a single on-platform discussion entry.
type Comment struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	Body         string    `json:"body"`
	Sentiment    Sentiment `json:"sentiment"`
	MentionRatio float64   `json:"mention_ratio"`
}

// EvidenceContext carries the resolution rules and the comment thread scraped
// from the market page.
type EvidenceContext struct {
	Rules    string    `json:"resolution_rules,omitempty"`
	Comments []Comment `json:"comments"`
}

// ContextSource scrapes evidence context for a market URL.
type ContextSource interface {
	Fetch(ctx context.Context, marketURL string) (EvidenceContext, error)
}
