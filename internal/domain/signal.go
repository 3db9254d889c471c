package domain

import (
	"context"
	"time"
)

// SignalKind classifies an external signal.
type SignalKind string

const (
	SignalKindNews    SignalKind = "news"
	SignalKindSocial  SignalKind = "social"
	SignalKindComment SignalKind = "comment"
)

// SignalRecord is one piece of externally gathered evidence.
type SignalRecord struct {
	Provider    string     `json:"provider"`
	Kind        SignalKind `json:"kind"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Sentiment   Sentiment  `json:"sentiment"`
	Credibility float64    `json:"credibility"`
	Engagement  *int       `json:"engagement,omitempty"`
}

// SignalSource gathers signals about a market. Individual provider failures
// are swallowed; Gather only fails when the aggregate cannot be produced.
type SignalSource interface {
	Gather(ctx context.Context, market MarketSnapshot) ([]SignalRecord, error)
}
