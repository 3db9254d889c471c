// Package service runs analyses end to end: market fetch, context scrape,
// signal gathering, orchestration, rendering and report fan-out.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyseek/internal/analysis"
	"github.com/alanyoungcy/polyseek/internal/domain"
)

const defaultSinkTimeout = 10 * time.Second

// ErrInvalidRequest reports a malformed analysis request.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Input is a single analysis request.
type Input struct {
	MarketURL   string             `json:"market_url"`
	Depth       domain.Depth       `json:"depth"`
	Perspective domain.Perspective `json:"perspective"`
}

// Normalize applies defaults and rejects unknown values.
func (in Input) Normalize() (Input, error) {
	if in.MarketURL == "" {
		return in, fmt.Errorf("%w: market_url is required", ErrInvalidRequest)
	}
	if in.Depth == "" {
		in.Depth = domain.DepthQuick
	}
	if in.Perspective == "" {
		in.Perspective = domain.PerspectiveNeutral
	}
	if !in.Depth.Valid() {
		return in, fmt.Errorf("%w: unknown depth %q", ErrInvalidRequest, in.Depth)
	}
	if !in.Perspective.Valid() {
		return in, fmt.Errorf("%w: unknown perspective %q", ErrInvalidRequest, in.Perspective)
	}
	return in, nil
}

// Observer records completed analyses.
type Observer interface {
	ObserveAnalysis(depth domain.Depth, verdict domain.Verdict)
}

type nopObserver struct{}

func (nopObserver) ObserveAnalysis(domain.Depth, domain.Verdict) {}

// Analyzer wires the collaborators and the orchestrator together.
type Analyzer struct {
	markets      domain.MarketSource
	contexts     domain.ContextSource
	signals      domain.SignalSource
	orchestrator *analysis.Orchestrator
	sinks        []domain.ReportSink
	observer     Observer
	sinkTimeout  time.Duration
	now          func() time.Time
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithSinks registers report sinks.
func WithSinks(sinks ...domain.ReportSink) AnalyzerOption {
	return func(a *Analyzer) { a.sinks = append(a.sinks, sinks...) }
}

// WithObserver sets the analysis observer.
func WithObserver(o Observer) AnalyzerOption {
	return func(a *Analyzer) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithSinkTimeout overrides the per-sink publish timeout.
func WithSinkTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.sinkTimeout = d
		}
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(
	markets domain.MarketSource,
	contexts domain.ContextSource,
	signals domain.SignalSource,
	orchestrator *analysis.Orchestrator,
	logger *slog.Logger,
	opts ...AnalyzerOption,
) *Analyzer {
	a := &Analyzer{
		markets:      markets,
		contexts:     contexts,
		signals:      signals,
		orchestrator: orchestrator,
		observer:     nopObserver{},
		sinkTimeout:  defaultSinkTimeout,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "analyzer")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs one analysis and returns the rendered report. Events are
// sent to emit as the run progresses; emitter failures abort the run.
func (a *Analyzer) Analyze(ctx context.Context, in Input, emit Emitter) (domain.Report, error) {
	in, err := in.Normalize()
	if err != nil {
		return domain.Report{}, err
	}
	if emit == nil {
		emit = Discard
	}

	runID := uuid.NewString()
	logger := a.logger.With(slog.String("run_id", runID), slog.String("market_url", in.MarketURL))
	start := a.now()
	send := func(evt Event) error {
		evt.RunID = runID
		if err := emit.Emit(ctx, evt); err != nil {
			return fmt.Errorf("service: emit %s: %w", evt.Name, err)
		}
		return nil
	}

	if err := send(Event{Name: EventReceived, Kind: KindText, Text: "Analyzing " + in.MarketURL}); err != nil {
		return domain.Report{}, err
	}

	market, err := a.markets.Fetch(ctx, in.MarketURL)
	if err != nil {
		return domain.Report{}, fmt.Errorf("service: fetch market: %w", err)
	}
	if err := send(Event{Name: EventMarketMetadata, Kind: KindJSON, Data: marketMetadata(market)}); err != nil {
		return domain.Report{}, err
	}

	evidence, err := a.contexts.Fetch(ctx, in.MarketURL)
	if err != nil {
		return domain.Report{}, fmt.Errorf("service: fetch context: %w", err)
	}
	signals, err := a.signals.Gather(ctx, market)
	if err != nil {
		return domain.Report{}, fmt.Errorf("service: gather signals: %w", err)
	}

	if in.Depth == domain.DepthDeep {
		if err := send(Event{Name: EventDeepMode, Kind: KindText, Text: "Starting deep analysis (Planner → Critic → Follow-up → Final)"}); err != nil {
			return domain.Report{}, err
		}
	}

	result, err := a.orchestrator.Run(ctx, analysis.Request{
		Market:      market,
		Context:     evidence,
		Signals:     signals,
		Depth:       in.Depth,
		Perspective: in.Perspective,
	})
	if err != nil {
		return domain.Report{}, fmt.Errorf("service: analyze: %w", err)
	}
	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["run_id"] = runID

	now := a.now().UTC()
	markdown := analysis.Render(result, now)
	report := domain.Report{
		ID:          runID,
		MarketURL:   in.MarketURL,
		MarketID:    market.ID,
		MarketTitle: market.Title,
		Venue:       market.Venue,
		Depth:       in.Depth,
		Perspective: in.Perspective,
		Result:      result,
		Markdown:    markdown,
		CreatedAt:   now,
	}

	if err := send(Event{Name: EventAnalysisJSON, Kind: KindJSON, Data: result}); err != nil {
		return domain.Report{}, err
	}
	if err := send(Event{Name: EventAnalysisMarkdown, Kind: KindChunk, Text: markdown}); err != nil {
		return domain.Report{}, err
	}
	if err := send(Event{Name: EventAnalysisMarkdown, Kind: KindStreamEnd}); err != nil {
		return domain.Report{}, err
	}
	if err := send(Event{Name: EventComplete, Kind: KindComplete}); err != nil {
		return domain.Report{}, err
	}

	a.observer.ObserveAnalysis(in.Depth, result.Verdict)
	logger.InfoContext(ctx, "analysis complete",
		slog.String("depth", string(in.Depth)),
		slog.String("verdict", string(result.Verdict)),
		slog.Float64("confidence_pct", result.ConfidencePct),
		slog.Duration("elapsed", a.now().Sub(start)),
	)

	a.publish(ctx, report)
	return report, nil
}

// publish fans the report out to every sink in the background. Sinks get a
// context detached from the request so a closed connection does not cancel
// persistence.
func (a *Analyzer) publish(ctx context.Context, report domain.Report) {
	detached := context.WithoutCancel(ctx)
	for _, sink := range a.sinks {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			sctx, cancel := context.WithTimeout(detached, a.sinkTimeout)
			defer cancel()
			if err := sink.Publish(sctx, report); err != nil {
				a.logger.WarnContext(sctx, "report sink failed",
					slog.String("sink", sink.Name()),
					slog.String("report_id", report.ID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
}

// Wait blocks until every in-flight sink publish has finished.
func (a *Analyzer) Wait() {
	a.wg.Wait()
}

func marketMetadata(m domain.MarketSnapshot) map[string]any {
	var deadline any
	if m.Deadline != nil {
		deadline = m.Deadline.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"title":    m.Title,
		"venue":    m.Venue,
		"deadline": deadline,
		"prices": map[string]any{
			"yes": m.Prices.Yes,
			"no":  m.Prices.No,
		},
	}
}
