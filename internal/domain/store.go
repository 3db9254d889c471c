package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ReportSummary is a list row of a persisted report.
type ReportSummary struct {
	ID            string      `json:"id"`
	MarketURL     string      `json:"market_url"`
	MarketTitle   string      `json:"market_title"`
	Venue         Venue       `json:"venue"`
	Depth         Depth       `json:"depth"`
	Perspective   Perspective `json:"perspective"`
	Verdict       Verdict     `json:"verdict"`
	ConfidencePct float64     `json:"confidence_pct"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ReportStore persists completed analysis reports.
type ReportStore interface {
	Save(ctx context.Context, report Report) error
	GetByID(ctx context.Context, id string) (Report, error)
	List(ctx context.Context, opts ListOpts) ([]ReportSummary, error)
}
