package domain

import (
	"context"
	"time"
)

// Verdict is the categorical answer of an analysis.
type Verdict string

const (
	VerdictYes       Verdict = "YES"
	VerdictNo        Verdict = "NO"
	VerdictUncertain Verdict = "UNCERTAIN"
)

// SourceType classifies a cited source.
type SourceType string

const (
	SourceMarket  SourceType = "market"
	SourceComment SourceType = "comment"
	SourceSNS     SourceType = "sns"
	SourceNews    SourceType = "news"
)

// SourceTypeOrder is the fixed grouping order used when rendering sources.
var SourceTypeOrder = []SourceType{SourceMarket, SourceComment, SourceSNS, SourceNews}

// Depth selects the orchestration mode.
type Depth string

const (
	DepthQuick Depth = "quick"
	DepthDeep  Depth = "deep"
)

// Valid reports whether d is a known depth.
func (d Depth) Valid() bool {
	return d == DepthQuick || d == DepthDeep
}

// Perspective biases the framing of the analysis prompt.
type Perspective string

const (
	PerspectiveNeutral        Perspective = "neutral"
	PerspectiveDevilsAdvocate Perspective = "devils_advocate"
)

// Valid reports whether p is a known perspective.
func (p Perspective) Valid() bool {
	return p == PerspectiveNeutral || p == PerspectiveDevilsAdvocate
}

// Driver is a cited reason supporting the verdict.
type Driver struct {
	Text      string   `json:"text"`
	SourceIDs []string `json:"source_ids"`
}

// Source is a piece of evidence referenced by drivers.
type Source struct {
	ID        string     `json:"id" validate:"required"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	Type      SourceType `json:"type" validate:"oneof=market comment sns news"`
	Sentiment Sentiment  `json:"sentiment" validate:"oneof=pro con neutral"`
	Timestamp string     `json:"timestamp,omitempty"`
}

// AnalysisResult is the schema-enforced output of the pipeline.
type AnalysisResult struct {
	Verdict            Verdict        `json:"verdict" validate:"oneof=YES NO UNCERTAIN"`
	ConfidencePct      float64        `json:"confidence_pct" validate:"gte=0,lte=100"`
	Summary            string         `json:"summary"`
	KeyDrivers         []Driver       `json:"key_drivers" validate:"dive"`
	UncertaintyFactors []string       `json:"uncertainty_factors"`
	NextSteps          []string       `json:"next_steps"`
	Sources            []Source       `json:"sources" validate:"min=1,max=10,dive"`
	AnalysisTimestamp  string         `json:"analysis_timestamp,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// Mode returns metadata.mode, or "" when unset.
func (r AnalysisResult) Mode() string {
	if r.Metadata == nil {
		return ""
	}
	mode, _ := r.Metadata["mode"].(string)
	return mode
}

// Document is the loosely-typed structure produced by response extraction.
type Document map[string]any

// StageArtifact is an unvalidated plan or critique: named lists of strings.
type StageArtifact map[string][]string

// List returns the named list, or an empty non-nil slice when absent.
func (a StageArtifact) List(key string) []string {
	if v, ok := a[key]; ok && v != nil {
		return v
	}
	return []string{}
}

// Report is a completed analysis together with its request parameters and
// rendered markdown.
type Report struct {
	ID          string         `json:"id"`
	MarketURL   string         `json:"market_url"`
	MarketID    string         `json:"market_id"`
	MarketTitle string         `json:"market_title"`
	Venue       Venue          `json:"venue"`
	Depth       Depth          `json:"depth"`
	Perspective Perspective    `json:"perspective"`
	Result      AnalysisResult `json:"json"`
	Markdown    string         `json:"markdown"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ReportSink receives completed reports after rendering.
type ReportSink interface {
	Name() string
	Publish(ctx context.Context, report Report) error
}
