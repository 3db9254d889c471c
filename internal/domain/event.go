package domain

import "time"

// EventAnalysisCompleted names the event published after every analysis.
const EventAnalysisCompleted = "analysis.completed"

// AnalysisCompleted is the compact summary fanned out to event consumers.
type AnalysisCompleted struct {
	Event         string      `json:"event"`
	ReportID      string      `json:"report_id"`
	MarketID      string      `json:"market_id"`
	MarketURL     string      `json:"market_url"`
	MarketTitle   string      `json:"market_title"`
	Venue         Venue       `json:"venue"`
	Depth         Depth       `json:"depth"`
	Perspective   Perspective `json:"perspective"`
	Verdict       Verdict     `json:"verdict"`
	ConfidencePct float64     `json:"confidence_pct"`
	Summary       string      `json:"summary"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CompletedEvent summarizes r.
func CompletedEvent(r Report) AnalysisCompleted {
	return AnalysisCompleted{
		Event:         EventAnalysisCompleted,
		ReportID:      r.ID,
		MarketID:      r.MarketID,
		MarketURL:     r.MarketURL,
		MarketTitle:   r.MarketTitle,
		Venue:         r.Venue,
		Depth:         r.Depth,
		Perspective:   r.Perspective,
		Verdict:       r.Result.Verdict,
		ConfidencePct: r.Result.ConfidencePct,
		Summary:       r.Result.Summary,
		CreatedAt:     r.CreatedAt,
	}
}
