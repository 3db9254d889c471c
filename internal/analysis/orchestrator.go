package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Stage names used in logs and metrics.
const (
	StageQuick    = "quick"
	StagePlan     = "plan"
	StageCritique = "critique"
	StageFinal    = "final"
)

// Planner and critic calls use a fixed low temperature and a small budget.
const (
	artifactTemperature = 0.3
	artifactMaxTokens   = 1024
)

// Settings are the generation parameters taken from configuration.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Recorder observes pipeline events. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	ObserveCompletion(stage string, d time.Duration, err error)
	ObserveExtraction(stage string, kind OutcomeKind)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCompletion(string, time.Duration, error) {}
func (nopRecorder) ObserveExtraction(string, OutcomeKind)          {}

// Orchestrator runs the quick or deep analysis state machine.
type Orchestrator struct {
	completion domain.CompletionService
	validator  *Validator
	settings   Settings
	offline    bool
	recorder   Recorder
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOffline makes every run return the deterministic offline result
// without calling the completion service.
func WithOffline(offline bool) Option {
	return func(o *Orchestrator) { o.offline = offline }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an Orchestrator. A nil completion service puts it
// in offline mode.
func NewOrchestrator(completion domain.CompletionService, settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		completion: completion,
		validator:  NewValidator(),
		settings:   settings,
		offline:    completion == nil,
		recorder:   nopRecorder{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("component", "orchestrator"))
	return o
}

// Run executes the pipeline for req. Completion failures never surface as
// errors; they become a SRC_ERROR result. The returned error is either a
// *domain.SchemaError from quick mode or the context error when the caller
// gave up.
func (o *Orchestrator) Run(ctx context.Context, req Request) (domain.AnalysisResult, error) {
	if o.offline {
		o.logger.InfoContext(ctx, "offline mode, returning stub analysis")
		return o.validator.Validate(offlineDocument(req.Market.URL))
	}
	if req.Depth == domain.DepthDeep {
		return o.runDeep(ctx, req)
	}
	return o.runQuick(ctx, req)
}

func (o *Orchestrator) runQuick(ctx context.Context, req Request) (domain.AnalysisResult, error) {
	raw, err := o.complete(ctx, StageQuick, BuildQuick(req), o.settings.Temperature, o.settings.MaxTokens)
	if err != nil {
		return o.failed(ctx, req.Depth, err)
	}

	out := Extract(raw)
	o.recorder.ObserveExtraction(StageQuick, out.Kind)
	doc := out.Document
	setMetadata(doc, map[string]any{"mode": string(domain.DepthQuick)})

	res, err := o.validator.Validate(doc)
	if err != nil {
		o.logger.WarnContext(ctx, "quick analysis failed validation", slog.String("error", err.Error()))
		return domain.AnalysisResult{}, err
	}
	return res, nil
}

func (o *Orchestrator) runDeep(ctx context.Context, req Request) (domain.AnalysisResult, error) {
	raw, err := o.complete(ctx, StagePlan, BuildPlan(req), artifactTemperature, artifactMaxTokens)
	if err != nil {
		return o.failed(ctx, req.Depth, err)
	}
	plan, kind := ExtractArtifact(raw)
	o.recorder.ObserveExtraction(StagePlan, kind)

	raw, err = o.complete(ctx, StageCritique, BuildCritique(req, plan), artifactTemperature, artifactMaxTokens)
	if err != nil {
		return o.failed(ctx, req.Depth, err)
	}
	critique, kind := ExtractArtifact(raw)
	o.recorder.ObserveExtraction(StageCritique, kind)

	final := req
	final.Signals = o.followUp(req.Signals, critique)
	final.Depth = domain.DepthDeep

	raw, err = o.complete(ctx, StageFinal, BuildFinal(final, plan, critique), o.settings.Temperature, o.settings.MaxTokens*2)
	if err != nil {
		return o.failed(ctx, req.Depth, err)
	}
	out := Extract(raw)
	o.recorder.ObserveExtraction(StageFinal, out.Kind)

	meta := map[string]any{
		"mode": string(domain.DepthDeep),
		"plan": plan.List("analysis_plan"),
		"critique": map[string]any{
			"gaps":              critique.List("gaps"),
			"follow_up_queries": critique.List("follow_up_queries"),
		},
	}

	doc := out.Document
	setMetadata(doc, meta)
	res, err := o.validator.Validate(doc)
	if err != nil {
		o.logger.WarnContext(ctx, "final stage failed validation, using format fallback",
			slog.String("error", err.Error()),
		)
		doc = formatFallback()
		setMetadata(doc, meta)
		if res, err = o.validator.Validate(doc); err != nil {
			return domain.AnalysisResult{}, err
		}
	}
	return res, nil
}

// followUp returns the evidence base for the final stage. It currently
// reuses the gathered signals as-is; this is where a SignalSource could be
// re-invoked with the critique's follow_up_queries.
func (o *Orchestrator) followUp(signals []domain.SignalRecord, _ domain.StageArtifact) []domain.SignalRecord {
	out := make([]domain.SignalRecord, len(signals))
	copy(out, signals)
	return out
}

func (o *Orchestrator) complete(ctx context.Context, stage string, p Prompt, temperature float64, maxTokens int) (string, error) {
	start := time.Now()
	raw, err := o.completion.Complete(ctx, domain.CompletionRequest{
		Model:       o.settings.Model,
		Messages:    p.Messages(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		StrictJSON:  true,
	})
	elapsed := time.Since(start)
	o.recorder.ObserveCompletion(stage, elapsed, err)
	if err != nil {
		return "", err
	}
	o.logger.DebugContext(ctx, "completion received",
		slog.String("stage", stage),
		slog.Int("chars", len(raw)),
		slog.Duration("elapsed", elapsed),
	)
	return raw, nil
}

// failed converts a completion failure into the SRC_ERROR result, unless the
// caller's context is done.
func (o *Orchestrator) failed(ctx context.Context, depth domain.Depth, err error) (domain.AnalysisResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return domain.AnalysisResult{}, ctxErr
	}
	o.logger.ErrorContext(ctx, "completion failed", slog.String("error", err.Error()))
	return o.validator.Validate(errorDocument(depth, err))
}

func setMetadata(doc domain.Document, fields map[string]any) {
	meta, _ := doc["metadata"].(map[string]any)
	if meta == nil {
		meta = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		meta[k] = v
	}
	doc["metadata"] = meta
}
