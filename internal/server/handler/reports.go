package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyseek/internal/domain"
	"github.com/alanyoungcy/polyseek/internal/search/elasticsearch"
)

// ReportSearcher runs full-text queries over indexed reports.
type ReportSearcher interface {
	Search(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

// ReportHandler serves persisted reports.
type ReportHandler struct {
	store    domain.ReportStore
	searcher ReportSearcher
	logger   *slog.Logger
}

// NewReportHandler creates a ReportHandler. searcher may be nil.
func NewReportHandler(store domain.ReportStore, searcher ReportSearcher, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		store:    store,
		searcher: searcher,
		logger:   logger.With(slog.String("handler", "reports")),
	}
}

// CanSearch reports whether a search backend is configured.
func (h *ReportHandler) CanSearch() bool {
	return h.searcher != nil
}

// ListReports returns report summaries, newest first.
// GET /reports?limit=&offset=&since=&until=
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list reports", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// GetReport returns one report in the POST /analyze shape plus metadata.
// GET /reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get report",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SearchReports runs a full-text query.
// GET /reports/search?q=&verdict=&venue=&limit=&offset=
func (h *ReportHandler) SearchReports(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		writeError(w, http.StatusNotImplemented, "search is not configured")
		return
	}
	q := r.URL.Query()
	opts := parseListOpts(r)
	res, err := h.searcher.Search(r.Context(), elasticsearch.SearchParams{
		Query:   q.Get("q"),
		Verdict: q.Get("verdict"),
		Venue:   q.Get("venue"),
		From:    opts.Offset,
		Size:    opts.Limit,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "search reports", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
