// Package ranking turns one adapter's hit set into the ranked page returned
// to the caller.
package ranking

import "vdestor_backend/internal/search/domain"

// Merge normalizes hits into summaries, drops repeated product ids (the
// first occurrence wins), cuts the requested page and assigns 1-based ranks
// in the backend's global order.
//
// set.Offset tells Merge where set.Hits[0] sits in that order, so a set the
// adapter already paged is not offset a second time.
func Merge(set domain.HitSet, page, limit int) []domain.ProductSummary {
	if limit <= 0 {
		return []domain.ProductSummary{}
	}
	if page < 1 {
		page = 1
	}

	unique := make([]domain.Hit, 0, len(set.Hits))
	seen := make(map[int64]struct{}, len(set.Hits))
	for _, hit := range set.Hits {
		if _, dup := seen[hit.ProductID]; dup {
			continue
		}
		seen[hit.ProductID] = struct{}{}
		unique = append(unique, hit)
	}

	start := (page-1)*limit - set.Offset
	if start < 0 {
		start = 0
	}
	if start >= len(unique) {
		return []domain.ProductSummary{}
	}
	end := start + limit
	if end > len(unique) {
		end = len(unique)
	}

	out := make([]domain.ProductSummary, 0, end-start)
	for i := start; i < end; i++ {
		hit := unique[i]
		out = append(out, domain.ProductSummary{
			ID:         hit.ProductID,
			ExternalID: hit.ExternalID,
			SKU:        hit.SKU,
			Name:       hit.Name,
			BrandName:  hit.BrandName,
			Score:      hit.Score,
			Rank:       set.Offset + i + 1,
		})
	}
	return out
}

// IDs returns the product ids in rank order.
func IDs(products []domain.ProductSummary) []int64 {
	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
