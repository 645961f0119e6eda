// Package domain holds the value types shared by the search components.
// Nothing here performs I/O.
package domain

// VariantKind tags how a QueryVariant was derived from the raw query.
type VariantKind string

const (
	VariantLiteral         VariantKind = "literal"
	VariantLayoutCorrected VariantKind = "layout-corrected"
	VariantCode            VariantKind = "code"
	VariantBrand           VariantKind = "brand"
)

// QueryVariant is one interpretation of the user's query.
type QueryVariant struct {
	Text string      `json:"text"`
	Kind VariantKind `json:"kind"`
}

// Source names the backend that produced a result set.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// DegradedReason explains why a request was served by the fallback backend.
type DegradedReason string

const (
	DegradedNone               DegradedReason = ""
	DegradedResourceOverload   DegradedReason = "resource_overload"
	DegradedPrimaryUnavailable DegradedReason = "primary_unavailable"
	DegradedPrimaryTimeout     DegradedReason = "primary_timeout"
	DegradedPrimaryError       DegradedReason = "primary_error"
)

// Hit is a raw match returned by a search adapter.
type Hit struct {
	ProductID  int64   `json:"product_id"`
	ExternalID string  `json:"external_id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	BrandName  string  `json:"brand_name"`
	Score      float64 `json:"score"`
}

// HitSet is one adapter's answer for one request.
// Offset is the absolute position of Hits[0] in the backend's full ordering;
// adapters that page server-side set it to the requested offset.
type HitSet struct {
	Hits   []Hit `json:"hits"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
}

// ProductSummary is a ranked, normalized hit.
type ProductSummary struct {
	ID         int64   `json:"id"`
	ExternalID string  `json:"external_id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	BrandName  string  `json:"brand_name"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// DynamicData is the location-scoped availability of one product.
// Nil means unknown, which is distinct from zero.
type DynamicData struct {
	Stock *float64 `json:"stock"`
	Price *float64 `json:"price"`
}

// Product is a ProductSummary enriched with its DynamicData.
type Product struct {
	ProductSummary
	DynamicData
}

// SearchResult is the successful outcome of one search request.
type SearchResult struct {
	Products       []Product
	Total          int64
	Page           int
	Limit          int
	Source         Source
	Variants       []QueryVariant
	TimingMs       int64
	DegradedReason DegradedReason
}

// VariantTexts returns the distinct variant texts in plan order.
func (r SearchResult) VariantTexts() []string {
	texts := make([]string, 0, len(r.Variants))
	seen := make(map[string]struct{}, len(r.Variants))
	for _, v := range r.Variants {
		if _, ok := seen[v.Text]; ok {
			continue
		}
		seen[v.Text] = struct{}{}
		texts = append(texts, v.Text)
	}
	return texts
}
