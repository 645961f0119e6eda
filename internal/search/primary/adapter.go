// Package primary queries the full-text search engine.
package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/internal/search/variants"
	"vdestor_backend/platform/opensearch"
)

var (
	// ErrBackendTimeout means the primary did not answer within its deadline.
	ErrBackendTimeout = errors.New("primary backend timeout")
	// ErrBackendUnavailable means the primary failed for any other reason.
	ErrBackendUnavailable = errors.New("primary backend unavailable")
)

// Engine is the subset of the OpenSearch client the adapter uses.
type Engine interface {
	Search(ctx context.Context, body interface{}) (*opensearch.SearchResponse, error)
	Ping(ctx context.Context) error
}

// Adapter runs plans against the primary backend.
type Adapter struct {
	engine  Engine
	timeout time.Duration
}

// New creates an adapter whose calls are cancelled after timeout.
func New(engine Engine, timeout time.Duration) *Adapter {
	return &Adapter{engine: engine, timeout: timeout}
}

type document struct {
	ProductID  *int64 `json:"product_id"`
	ExternalID string `json:"external_id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	BrandName  string `json:"brand_name"`
}

// Search returns one page of hits starting at offset.
// Errors wrap ErrBackendTimeout or ErrBackendUnavailable.
func (a *Adapter) Search(ctx context.Context, plan variants.Plan, offset, limit int) (domain.HitSet, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.engine.Search(ctx, BuildQuery(plan, offset, limit, a.timeout))
	if err != nil {
		return domain.HitSet{}, classify(err)
	}
	if resp.TimedOut {
		return domain.HitSet{}, fmt.Errorf("%w: engine reported timed_out after %dms", ErrBackendTimeout, resp.Took)
	}

	hits := make([]domain.Hit, 0, len(resp.Hits.Hits))
	for _, raw := range resp.Hits.Hits {
		hit, err := decodeHit(raw)
		if err != nil {
			return domain.HitSet{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		hits = append(hits, hit)
	}

	return domain.HitSet{Hits: hits, Total: resp.Hits.Total.Value, Offset: offset}, nil
}

// Ping probes the backend; the availability gate calls it.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.engine.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func decodeHit(raw opensearch.Hit) (domain.Hit, error) {
	var doc document
	if len(raw.Source) > 0 {
		if err := json.Unmarshal(raw.Source, &doc); err != nil {
			return domain.Hit{}, fmt.Errorf("decode hit %s: %w", raw.ID, err)
		}
	}

	hit := domain.Hit{
		ExternalID: doc.ExternalID,
		SKU:        doc.SKU,
		Name:       doc.Name,
		BrandName:  doc.BrandName,
	}
	if raw.Score != nil {
		hit.Score = *raw.Score
	}

	if doc.ProductID != nil {
		hit.ProductID = *doc.ProductID
	} else {
		id, err := strconv.ParseInt(raw.ID, 10, 64)
		if err != nil {
			return domain.Hit{}, fmt.Errorf("hit %q has no numeric product id", raw.ID)
		}
		hit.ProductID = id
	}
	return hit, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}
	var statusErr *opensearch.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 504 {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
