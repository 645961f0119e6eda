// Package enrichment joins ranked product ids with location-scoped stock
// and price.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads stock balances and prices.
type Repository struct {
	db      Querier
	timeout time.Duration
}

// New creates a repository whose lookups are bounded by timeout.
func New(db Querier, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// ValidateLocation returns a NotFound error when the city, or the given
// warehouse, does not exist.
func (r *Repository) ValidateLocation(ctx context.Context, cityID int64, warehouseID *int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cityExists, warehouseExists bool
	err := r.db.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM cities WHERE city_id = $1),
			$2::bigint IS NULL OR EXISTS (SELECT 1 FROM warehouses WHERE warehouse_id = $2)`,
		cityID, warehouseID,
	).Scan(&cityExists, &warehouseExists)
	if err != nil {
		return fmt.Errorf("validate location: %w", err)
	}

	if !cityExists {
		return apperr.NotFound(fmt.Sprintf("city %d not found", cityID)).WithOp("enrichment.ValidateLocation")
	}
	if !warehouseExists {
		return apperr.NotFound(fmt.Sprintf("warehouse %d not found", *warehouseID)).WithOp("enrichment.ValidateLocation")
	}
	return nil
}

// Lookup returns stock and price for ids. Products without rows are absent
// from the map or carry nil fields; neither is an error.
func (r *Repository) Lookup(ctx context.Context, ids []int64, cityID int64, warehouseID *int64) (map[int64]domain.DynamicData, error) {
	out := make(map[int64]domain.DynamicData, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stock, prices map[int64]float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = r.stock(gctx, ids, cityID, warehouseID)
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = r.prices(gctx, ids, cityID, warehouseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Combine(ids, stock, prices), nil
}

// Combine builds the per-product result from the two lookups.
func Combine(ids []int64, stock, prices map[int64]float64) map[int64]domain.DynamicData {
	out := make(map[int64]domain.DynamicData, len(ids))
	for _, id := range ids {
		var data domain.DynamicData
		if qty, ok := stock[id]; ok {
			q := qty
			data.Stock = &q
		}
		if price, ok := prices[id]; ok {
			p := price
			data.Price = &p
		}
		out[id] = data
	}
	return out
}

func (r *Repository) stock(ctx context.Context, ids []int64, cityID int64, warehouseID *int64) (map[int64]float64, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if warehouseID != nil {
		rows, err = r.db.Query(ctx, `
			SELECT product_id, quantity::float8
			FROM stock_balances
			WHERE warehouse_id = $2 AND product_id = ANY($1::bigint[])`,
			ids, *warehouseID)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT sb.product_id, SUM(sb.quantity)::float8
			FROM stock_balances sb
			JOIN city_warehouse_mapping cwm ON cwm.warehouse_id = sb.warehouse_id
			WHERE cwm.city_id = $2 AND sb.product_id = ANY($1::bigint[])
			GROUP BY sb.product_id`,
			ids, cityID)
	}
	if err != nil {
		return nil, fmt.Errorf("stock lookup: %w", err)
	}
	return scanAmounts(rows, "stock")
}

// prices picks, per product, a warehouse override over a city override over
// the base price. Scope 0 is a warehouse, 1 a city, 2 the base price;
// within one scope the latest valid_from wins.
func (r *Repository) prices(ctx context.Context, ids []int64, cityID int64, warehouseID *int64) (map[int64]float64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT product_id, price::float8,
			CASE
				WHEN warehouse_id IS NOT NULL THEN 0
				WHEN city_id IS NOT NULL THEN 1
				ELSE 2
			END AS scope
		FROM prices
		WHERE product_id = ANY($1::bigint[])
			AND (
				($3::bigint IS NOT NULL AND warehouse_id = $3)
				OR (warehouse_id IS NULL AND city_id = $2)
				OR (warehouse_id IS NULL AND city_id IS NULL AND is_base)
			)
		ORDER BY product_id, scope, valid_from DESC`,
		ids, cityID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("price lookup: %w", err)
	}
	return scanPrices(rows)
}

func scanPrices(rows pgx.Rows) (map[int64]float64, error) {
	defer rows.Close()

	out := make(map[int64]float64)
	best := make(map[int64]int32)
	for rows.Next() {
		var (
			id    int64
			price float64
			scope int32
		)
		if err := rows.Scan(&id, &price, &scope); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		if current, seen := best[id]; seen && current <= scope {
			continue
		}
		best[id] = scope
		out[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price: %w", err)
	}
	return out, nil
}

func scanAmounts(rows pgx.Rows, what string) (map[int64]float64, error) {
	defer rows.Close()

	out := make(map[int64]float64)
	for rows.Next() {
		var (
			id     int64
			amount float64
		)
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out[id] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

// Attach pairs ranked summaries with their dynamic data, keeping rank order.
func Attach(products []domain.ProductSummary, data map[int64]domain.DynamicData) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = domain.Product{ProductSummary: p, DynamicData: data[p.ID]}
	}
	return out
}
