package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"vdestor_backend/platform/apperr"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	// MaxResultWindow bounds offset+limit, matching the primary index's
	// max_result_window.
	MaxResultWindow = 10000
	MaxQueryRunes   = 200
	// MaxAvailabilityIDs bounds one availability lookup.
	MaxAvailabilityIDs = 100
)

const (
	CodeConfigurationError = "CONFIGURATION_ERROR"
	CodeSearchFailed       = "SEARCH_FAILED"
	CodeAvailabilityFailed = "AVAILABILITY_FAILED"
)

// ConfigurationError builds the error returned for bad request parameters
// and unknown locations.
func ConfigurationError(message string) *apperr.Error {
	return apperr.Validation(message).WithCode(CodeConfigurationError)
}

// RawSearchParams is the unparsed query string of a search call.
type RawSearchParams struct {
	Query       string
	Page        string
	Limit       string
	CityID      string
	WarehouseID string
}

// SearchRequest is a validated search call. It is never mutated after
// NormalizeSearchRequest returns it.
type SearchRequest struct {
	Query       string
	Page        int
	Limit       int
	CityID      int64
	WarehouseID *int64
}

// Offset is the absolute position of the first requested item.
func (r SearchRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}

// NormalizeSearchRequest trims the query, clamps page and limit, and parses
// the location ids.
func NormalizeSearchRequest(raw RawSearchParams) (SearchRequest, error) {
	query := strings.TrimSpace(raw.Query)
	if utf8.RuneCountInString(query) > MaxQueryRunes {
		query = string([]rune(query)[:MaxQueryRunes])
	}

	limit, err := parseOptionalInt(raw.Limit, DefaultLimit)
	if err != nil {
		return SearchRequest{}, ConfigurationError("limit must be an integer")
	}
	limit = ClampLimit(limit)

	page, err := parseOptionalInt(raw.Page, 1)
	if err != nil {
		return SearchRequest{}, ConfigurationError("page must be an integer")
	}
	page = ClampPage(page, limit)

	cityID, warehouseID, err := parseLocation(raw.CityID, raw.WarehouseID)
	if err != nil {
		return SearchRequest{}, err
	}

	req := SearchRequest{Query: query, Page: page, Limit: limit, CityID: cityID, WarehouseID: warehouseID}

	return req, nil
}

// ClampLimit maps a requested page size into [1, MaxLimit]; zero selects
// DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// ClampPage keeps page >= 1 and the requested window inside MaxResultWindow.
func ClampPage(page, limit int) int {
	if page < 1 {
		page = 1
	}
	maxPage := MaxResultWindow / limit
	if page > maxPage {
		page = maxPage
	}
	return page
}

// RawAvailabilityParams is the unparsed query string of an availability call.
type RawAvailabilityParams struct {
	ProductIDs  string
	CityID      string
	WarehouseID string
}

// AvailabilityRequest asks for stock and price of known products.
type AvailabilityRequest struct {
	ProductIDs  []int64
	CityID      int64
	WarehouseID *int64
}

// NormalizeAvailabilityRequest parses the comma-separated id list, dropping
// repeats, and the location ids.
func NormalizeAvailabilityRequest(raw RawAvailabilityParams) (AvailabilityRequest, error) {
	idsRaw := strings.TrimSpace(raw.ProductIDs)
	if idsRaw == "" {
		return AvailabilityRequest{}, ConfigurationError("product_ids is required")
	}

	parts := strings.Split(idsRaw, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return AvailabilityRequest{}, ConfigurationError("product_ids must be positive integers")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return AvailabilityRequest{}, ConfigurationError("product_ids is required")
	}
	if len(ids) > MaxAvailabilityIDs {
		return AvailabilityRequest{}, ConfigurationError("too many product_ids")
	}

	cityID, warehouseID, err := parseLocation(raw.CityID, raw.WarehouseID)
	if err != nil {
		return AvailabilityRequest{}, err
	}

	return AvailabilityRequest{ProductIDs: ids, CityID: cityID, WarehouseID: warehouseID}, nil
}

func parseLocation(cityRaw, warehouseRaw string) (int64, *int64, error) {
	cityRaw = strings.TrimSpace(cityRaw)
	if cityRaw == "" {
		return 0, nil, ConfigurationError("city_id is required")
	}
	cityID, err := strconv.ParseInt(cityRaw, 10, 64)
	if err != nil || cityID <= 0 {
		return 0, nil, ConfigurationError("city_id must be a positive integer")
	}

	warehouseRaw = strings.TrimSpace(warehouseRaw)
	if warehouseRaw == "" {
		return cityID, nil, nil
	}
	warehouseID, err := strconv.ParseInt(warehouseRaw, 10, 64)
	if err != nil || warehouseID <= 0 {
		return 0, nil, ConfigurationError("warehouse_id must be a positive integer")
	}
	return cityID, &warehouseID, nil
}

func parseOptionalInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
