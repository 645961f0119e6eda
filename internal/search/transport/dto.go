package transport

import (
	"strconv"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/internal/search/querylog"
)

// SearchQuery is bound from the query string. Numeric fields stay strings
// so range and presence rules are applied in one place by the domain.
type SearchQuery struct {
	Query       string `form:"q" validate:"max=1000"`
	Page        string `form:"page" validate:"numeric_or_empty"`
	Limit       string `form:"limit" validate:"numeric_or_empty"`
	CityID      string `form:"city_id" validate:"numeric_or_empty"`
	WarehouseID string `form:"warehouse_id" validate:"numeric_or_empty"`
}

func (q SearchQuery) Params() domain.RawSearchParams {
	return domain.RawSearchParams{
		Query:       q.Query,
		Page:        q.Page,
		Limit:       q.Limit,
		CityID:      q.CityID,
		WarehouseID: q.WarehouseID,
	}
}

type AvailabilityQuery struct {
	ProductIDs  string `form:"product_ids" validate:"id_list"`
	CityID      string `form:"city_id" validate:"numeric_or_empty"`
	WarehouseID string `form:"warehouse_id" validate:"numeric_or_empty"`
}

func (q AvailabilityQuery) Params() domain.RawAvailabilityParams {
	return domain.RawAvailabilityParams{
		ProductIDs:  q.ProductIDs,
		CityID:      q.CityID,
		WarehouseID: q.WarehouseID,
	}
}

type MissesQuery struct {
	LookbackDays int `form:"days" validate:"omitempty,min=1,max=365"`
	MinCount     int `form:"min_count" validate:"omitempty,min=1,max=1000"`
	Limit        int `form:"limit" validate:"omitempty,min=1,max=200"`
}

type ProductItem struct {
	ID         int64    `json:"id"`
	ExternalID string   `json:"external_id"`
	SKU        string   `json:"sku"`
	Name       string   `json:"name"`
	BrandName  string   `json:"brand_name"`
	Score      float64  `json:"score"`
	Rank       int      `json:"rank"`
	Stock      *float64 `json:"stock"`
	Price      *float64 `json:"price"`
}

type SearchResponse struct {
	Products       []ProductItem `json:"products"`
	Total          int64         `json:"total"`
	Page           int           `json:"page"`
	Limit          int           `json:"limit"`
	Source         string        `json:"source"`
	SearchVariants []string      `json:"search_variants"`
	TimingMs       int64         `json:"timing_ms"`
	DegradedReason string        `json:"degraded_reason,omitempty"`
}

type AvailabilityItem struct {
	Stock *float64 `json:"stock"`
	Price *float64 `json:"price"`
}

type AvailabilityResponse struct {
	Items map[string]AvailabilityItem `json:"items"`
}

type MissesResponse struct {
	Items []querylog.MissSummary `json:"items"`
}

func NewSearchResponse(result *domain.SearchResult) SearchResponse {
	items := make([]ProductItem, len(result.Products))
	for i, p := range result.Products {
		items[i] = ProductItem{
			ID:         p.ID,
			ExternalID: p.ExternalID,
			SKU:        p.SKU,
			Name:       p.Name,
			BrandName:  p.BrandName,
			Score:      p.Score,
			Rank:       p.Rank,
			Stock:      p.Stock,
			Price:      p.Price,
		}
	}

	return SearchResponse{
		Products:       items,
		Total:          result.Total,
		Page:           result.Page,
		Limit:          result.Limit,
		Source:         string(result.Source),
		SearchVariants: result.VariantTexts(),
		TimingMs:       result.TimingMs,
		DegradedReason: string(result.DegradedReason),
	}
}

func NewAvailabilityResponse(data map[int64]domain.DynamicData) AvailabilityResponse {
	items := make(map[string]AvailabilityItem, len(data))
	for id, d := range data {
		items[strconv.FormatInt(id, 10)] = AvailabilityItem{Stock: d.Stock, Price: d.Price}
	}
	return AvailabilityResponse{Items: items}
}
