// Package fallback answers search requests from the relational catalog when
// the primary backend cannot.
package fallback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/internal/search/variants"

	"github.com/jackc/pgx/v5"
)

// Match tiers, best first. Ties within a tier are broken by product id.
const (
	TierExact     = 3
	TierPrefix    = 2
	TierSubstring = 1
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository runs tiered text matching in PostgreSQL.
type Repository struct {
	db      Querier
	timeout time.Duration
}

// New creates a repository whose searches are bounded by timeout.
func New(db Querier, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// Patterns are the LIKE arguments derived from a plan.
type Patterns struct {
	Exact     []string
	Prefix    []string
	Substring []string
}

// BuildPatterns lower-cases and escapes every text and code variant. Brand
// hints never match on their own. Multi-word variants match as substrings
// when their words appear in order.
func BuildPatterns(plan variants.Plan) Patterns {
	var p Patterns
	terms := append(plan.Texts(), plan.Codes()...)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		escaped := escapeLike(term)
		p.Exact = appendUnique(p.Exact, term)
		p.Prefix = appendUnique(p.Prefix, escaped+"%")

		words := strings.Fields(term)
		for i, w := range words {
			words[i] = escapeLike(w)
		}
		p.Substring = appendUnique(p.Substring, "%"+strings.Join(words, "%")+"%")
	}
	for _, stem := range plan.Stems {
		p.Substring = appendUnique(p.Substring, "%"+escapeLike(strings.ToLower(stem))+"%")
	}
	return p
}

const rankedProductsSQL = `
	SELECT
		p.product_id,
		p.external_id,
		COALESCE(p.sku, '') AS sku,
		p.name,
		COALESCE(b.name, '') AS brand_name,
		CASE
			WHEN lower(p.external_id) = ANY($1::text[])
				OR lower(COALESCE(p.sku, '')) = ANY($1::text[])
				OR lower(p.name) = ANY($1::text[]) THEN 3
			WHEN lower(p.external_id) LIKE ANY($2::text[])
				OR lower(COALESCE(p.sku, '')) LIKE ANY($2::text[])
				OR lower(p.name) LIKE ANY($2::text[]) THEN 2
			WHEN lower(concat_ws(' ', p.external_id, p.sku, p.name, b.name, s.name, p.description)) LIKE ANY($3::text[]) THEN 1
			ELSE 0
		END AS tier
	FROM products p
	LEFT JOIN brands b ON b.brand_id = p.brand_id
	LEFT JOIN series s ON s.series_id = p.series_id`

// Search returns one page of hits starting at offset.
func (r *Repository) Search(ctx context.Context, plan variants.Plan, offset, limit int) (domain.HitSet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if plan.Empty() {
		return r.listAll(ctx, offset, limit)
	}

	p := BuildPatterns(plan)
	querySQL := `
		SELECT product_id, external_id, sku, name, brand_name, tier, COUNT(*) OVER() AS total
		FROM (` + rankedProductsSQL + `
		) ranked
		WHERE tier > 0
		ORDER BY tier DESC, product_id ASC
		OFFSET $4 LIMIT $5`

	rows, err := r.db.Query(ctx, querySQL, p.Exact, p.Prefix, p.Substring, offset, limit)
	if err != nil {
		return domain.HitSet{}, fmt.Errorf("fallback search: %w", err)
	}

	set, err := collect(rows, offset)
	if err != nil {
		return domain.HitSet{}, err
	}

	if len(set.Hits) == 0 && offset > 0 {
		countSQL := `SELECT COUNT(*) FROM (` + rankedProductsSQL + `) ranked WHERE tier > 0`
		if err := r.db.QueryRow(ctx, countSQL, p.Exact, p.Prefix, p.Substring).Scan(&set.Total); err != nil {
			return domain.HitSet{}, fmt.Errorf("fallback count: %w", err)
		}
	}
	return set, nil
}

// listAll serves the match-all query: the whole catalog by id.
func (r *Repository) listAll(ctx context.Context, offset, limit int) (domain.HitSet, error) {
	querySQL := `
		SELECT p.product_id, p.external_id, COALESCE(p.sku, ''), p.name, COALESCE(b.name, ''),
			0 AS tier, COUNT(*) OVER() AS total
		FROM products p
		LEFT JOIN brands b ON b.brand_id = p.brand_id
		ORDER BY p.product_id ASC
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, querySQL, offset, limit)
	if err != nil {
		return domain.HitSet{}, fmt.Errorf("fallback list: %w", err)
	}

	set, err := collect(rows, offset)
	if err != nil {
		return domain.HitSet{}, err
	}

	if len(set.Hits) == 0 && offset > 0 {
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&set.Total); err != nil {
			return domain.HitSet{}, fmt.Errorf("fallback count: %w", err)
		}
	}
	return set, nil
}

// Ping checks the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func collect(rows pgx.Rows, offset int) (domain.HitSet, error) {
	defer rows.Close()

	set := domain.HitSet{Hits: make([]domain.Hit, 0), Offset: offset}
	for rows.Next() {
		var (
			hit  domain.Hit
			tier int32
		)
		if err := rows.Scan(&hit.ProductID, &hit.ExternalID, &hit.SKU, &hit.Name, &hit.BrandName, &tier, &set.Total); err != nil {
			return domain.HitSet{}, fmt.Errorf("scan fallback hit: %w", err)
		}
		hit.Score = float64(tier)
		set.Hits = append(set.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return domain.HitSet{}, fmt.Errorf("iterate fallback hits: %w", err)
	}
	return set, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

func appendUnique(dst []string, value string) []string {
	for _, existing := range dst {
		if existing == value {
			return dst
		}
	}
	return append(dst, value)
}
