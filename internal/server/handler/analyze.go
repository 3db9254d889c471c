package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/service"
)

const maxAnalyzeBody = 64 << 10

// Analyzer runs a single analysis.
type Analyzer interface {
	Analyze(ctx context.Context, in service.Input, emit service.Emitter) (domain.Report, error)
}

// AnalyzeResponse is the body of a successful POST /analyze.
type AnalyzeResponse struct {
	Markdown string                `json:"markdown"`
	JSON     domain.AnalysisResult `json:"json"`
}

// AnalyzeHandler serves the synchronous analysis endpoint.
type AnalyzeHandler struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAnalyzeHandler creates an AnalyzeHandler. A non-positive timeout
// leaves the request context untouched.
func NewAnalyzeHandler(analyzer Analyzer, timeout time.Duration, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		timeout:  timeout,
		logger:   logger.With(slog.String("handler", "analyze")),
	}
}

// Analyze decodes {market_url, depth, perspective}, runs the pipeline and
// returns {markdown, json}. Malformed requests get 400; every other failure
// is a 500 with the error message and no partial body.
// POST /analyze
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var in service.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if in.MarketURL == "" {
		writeError(w, http.StatusBadRequest, "market_url is required")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	report, err := h.analyzer.Analyze(ctx, in, service.Discard)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "analysis failed",
			slog.String("market_url", in.MarketURL),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{Markdown: report.Markdown, JSON: report.Result})
}
