// Package elasticsearch indexes completed analysis reports for full-text
// search.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// Config holds connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Index     string
}

// Client wraps go-elasticsearch for the report index. It implements
// domain.ReportSink.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

// Document is the indexed form of a report.
type Document struct {
	ID            string    `json:"id"`
	MarketURL     string    `json:"market_url"`
	MarketID      string    `json:"market_id"`
	MarketTitle   string    `json:"market_title"`
	Venue         string    `json:"venue"`
	Depth         string    `json:"depth"`
	Perspective   string    `json:"perspective"`
	Verdict       string    `json:"verdict"`
	ConfidencePct float64   `json:"confidence_pct"`
	Summary       string    `json:"summary"`
	Drivers       []string  `json:"drivers"`
	Markdown      string    `json:"markdown"`
	CreatedAt     time.Time `json:"created_at"`
}

// SearchParams narrow a report search.
type SearchParams struct {
	Query   string
	Verdict string
	Venue   string
	From    int
	Size    int
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64      `json:"total"`
	Items []Document `json:"items"`
}

// New instantiates the Elasticsearch client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		es:    es,
		index: cfg.Index,
		log:   logger.With(slog.String("component", "report_index")),
	}, nil
}

// NewDocument flattens r into its indexed form.
func NewDocument(r domain.Report) Document {
	drivers := make([]string, 0, len(r.Result.KeyDrivers))
	for _, d := range r.Result.KeyDrivers {
		drivers = append(drivers, d.Text)
	}
	return Document{
		ID:            r.ID,
		MarketURL:     r.MarketURL,
		MarketID:      r.MarketID,
		MarketTitle:   r.MarketTitle,
		Venue:         string(r.Venue),
		Depth:         string(r.Depth),
		Perspective:   string(r.Perspective),
		Verdict:       string(r.Result.Verdict),
		ConfidencePct: r.Result.ConfidencePct,
		Summary:       r.Result.Summary,
		Drivers:       drivers,
		Markdown:      r.Markdown,
		CreatedAt:     r.CreatedAt,
	}
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: ping failed: %s", res.Status())
	}
	return nil
}

// Name identifies the sink in logs.
func (c *Client) Name() string { return "search_index" }

// Publish indexes r under its run id.
func (c *Client) Publish(ctx context.Context, r domain.Report) error {
	payload, err := json.Marshal(NewDocument(r))
	if err != nil {
		return fmt.Errorf("elasticsearch: marshal report %s: %w", r.ID, err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: r.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("elasticsearch: index report %s: %w", r.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch: index report %s failed: %s", r.ID, strings.TrimSpace(string(body)))
	}
	c.log.DebugContext(ctx, "report indexed", slog.String("report_id", r.ID))
	return nil
}

// Search runs a bool query over title, summary, drivers and markdown,
// newest first.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	payload, err := json.Marshal(searchBody(params))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode search response: %w", err)
	}

	items := make([]Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}
	return &SearchResult{Total: parsed.Hits.Total.Value, Items: items}, nil
}

func searchBody(params SearchParams) map[string]any {
	size := params.Size
	switch {
	case size <= 0:
		size = 20
	case size > 100:
		size = 100
	}
	from := max(params.From, 0)

	var must, filters []map[string]any
	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"market_title^3", "summary^2", "drivers", "markdown"},
			},
		})
	}
	if params.Verdict != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"verdict": params.Verdict}})
	}
	if params.Venue != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"venue": params.Venue}})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	} else {
		boolQuery["must"] = []map[string]any{{"match_all": map[string]any{}}}
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"from":             from,
		"size":             size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort":             []map[string]any{{"created_at": map[string]any{"order": "desc"}}},
	}
}
