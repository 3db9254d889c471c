package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

// ReportStore implements domain.ReportStore using PostgreSQL.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a new ReportStore backed by the given connection pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

const reportCols = `id, market_url, market_id, market_title, venue, depth, perspective,
	verdict, confidence_pct, result, markdown, created_at`

const summaryCols = `id, market_url, market_title, venue, depth, perspective,
	verdict, confidence_pct, created_at`

// Save upserts a report keyed by its run id.
func (s *ReportStore) Save(ctx context.Context, r domain.Report) error {
	result, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("postgres: marshal report %s: %w", r.ID, err)
	}

	const query = `
		INSERT INTO analysis_reports (` + reportCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			verdict        = EXCLUDED.verdict,
			confidence_pct = EXCLUDED.confidence_pct,
			result         = EXCLUDED.result,
			markdown       = EXCLUDED.markdown`

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.MarketURL, r.MarketID, r.MarketTitle,
		string(r.Venue), string(r.Depth), string(r.Perspective),
		string(r.Result.Verdict), r.Result.ConfidencePct,
		result, r.Markdown, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save report %s: %w", r.ID, err)
	}
	return nil
}

// GetByID returns the report with the given id, or domain.ErrNotFound.
func (s *ReportStore) GetByID(ctx context.Context, id string) (domain.Report, error) {
	query := `SELECT ` + reportCols + ` FROM analysis_reports WHERE id = $1`

	var (
		r                         domain.Report
		venue, depth, perspective string
		verdict                   string
		confidence                float64
		result                    []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.MarketURL, &r.MarketID, &r.MarketTitle,
		&venue, &depth, &perspective,
		&verdict, &confidence, &result, &r.Markdown, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Report{}, domain.ErrNotFound
		}
		return domain.Report{}, fmt.Errorf("postgres: get report %s: %w", id, err)
	}

	if err := json.Unmarshal(result, &r.Result); err != nil {
		return domain.Report{}, fmt.Errorf("postgres: unmarshal report %s: %w", id, err)
	}
	r.Venue = domain.Venue(venue)
	r.Depth = domain.Depth(depth)
	r.Perspective = domain.Perspective(perspective)
	return r, nil
}

// List returns report summaries, newest first.
func (s *ReportStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ReportSummary, error) {
	query, args := listQuery(`SELECT `+summaryCols+` FROM analysis_reports WHERE 1=1`, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports: %w", err)
	}
	defer rows.Close()

	out := []domain.ReportSummary{}
	for rows.Next() {
		var (
			rs                                 domain.ReportSummary
			venue, depth, perspective, verdict string
		)
		if err := rows.Scan(
			&rs.ID, &rs.MarketURL, &rs.MarketTitle,
			&venue, &depth, &perspective,
			&verdict, &rs.ConfidencePct, &rs.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}
		rs.Venue = domain.Venue(venue)
		rs.Depth = domain.Depth(depth)
		rs.Perspective = domain.Perspective(perspective)
		rs.Verdict = domain.Verdict(verdict)
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list reports rows: %w", err)
	}
	return out, nil
}

// listQuery appends the time window, ordering and pagination of opts to base.
func listQuery(base string, opts domain.ListOpts) (string, []any) {
	query := base
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
