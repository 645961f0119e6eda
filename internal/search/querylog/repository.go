// Package querylog persists served searches and reports the queries that
// keep returning nothing.
package querylog

import (
	"context"
	"fmt"
	"time"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/platform/sanitize"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct {
	db DB
}

func New(db DB) *Repository {
	return &Repository{db: db}
}

// Entry is one served search.
type Entry struct {
	Query          string
	Source         string
	ResultCount    int64
	CityID         int64
	TimingMs       int64
	DegradedReason string
	RequestID      string
	CreatedAt      *time.Time // optional override (normally server-side now())
}

// MissSummary aggregates a query that repeatedly produced zero results.
type MissSummary struct {
	Query       string    `json:"query"`
	SearchCount int       `json:"search_count"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Sources     []string  `json:"sources"`
}

// Validate checks the fields the table requires.
func (e Entry) Validate() error {
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	if e.ResultCount < 0 {
		return fmt.Errorf("result_count cannot be negative")
	}
	if e.TimingMs < 0 {
		return fmt.Errorf("timing_ms cannot be negative")
	}
	return nil
}

func (r *Repository) Insert(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := sanitize.QueryText(e.Query, domain.MaxQueryRunes)
	degraded := nullable(e.DegradedReason)
	requestID := nullable(e.RequestID)
	var cityID *int64
	if e.CityID > 0 {
		cityID = &e.CityID
	}

	if e.CreatedAt == nil {
		_, err := r.db.Exec(ctx, `
			INSERT INTO search_query_log (query, source, result_count, city_id, timing_ms, degraded, request_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, query, e.Source, e.ResultCount, cityID, e.TimingMs, degraded, requestID)
		return err
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO search_query_log (query, source, result_count, city_id, timing_ms, degraded, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, query, e.Source, e.ResultCount, cityID, e.TimingMs, degraded, requestID, *e.CreatedAt)
	return err
}

// ListFrequentMisses returns distinct queries that produced zero results at
// least minCount times within the lookback window.
func (r *Repository) ListFrequentMisses(ctx context.Context, lookbackDays, minCount, limit int) ([]MissSummary, error) {
	if lookbackDays <= 0 {
		lookbackDays = 14
	}
	if minCount <= 0 {
		minCount = 3
	}
	if limit <= 0 {
		limit = 25
	}

	// Normalize in SQL so case and whitespace variants group together; the
	// representative query is kept for human review.
	rows, err := r.db.Query(ctx, `
		WITH misses AS (
			SELECT
				LOWER(REGEXP_REPLACE(TRIM(query), '\s+', ' ', 'g')) AS qnorm,
				query,
				source,
				created_at
			FROM search_query_log
			WHERE result_count = 0
				AND query <> ''
				AND created_at >= (NOW() - ($1::int || ' days')::interval)
		)
		SELECT
			MIN(query) AS representative_query,
			COUNT(*)::int AS cnt,
			MAX(created_at) AS last_seen,
			ARRAY_AGG(DISTINCT source) AS sources
		FROM misses
		GROUP BY qnorm
		HAVING COUNT(*) >= $2
		ORDER BY cnt DESC, last_seen DESC
		LIMIT $3
	`, lookbackDays, minCount, limit)
	if err != nil {
		return nil, fmt.Errorf("query search misses: %w", err)
	}
	defer rows.Close()

	items := make([]MissSummary, 0)
	for rows.Next() {
		var it MissSummary
		if err := rows.Scan(&it.Query, &it.SearchCount, &it.LastSeenAt, &it.Sources); err != nil {
			return nil, fmt.Errorf("scan search miss summary: %w", err)
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate search miss summaries: %w", rows.Err())
	}

	return items, nil
}

// DeleteBefore removes log rows older than cutoff.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM search_query_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old search logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
