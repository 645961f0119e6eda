package service

import (
	"context"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/platform/apperr"
)

// Availability returns stock and price for the requested products. Every
// requested id is present in the result; unknown values are nil.
func (s *Service) Availability(ctx context.Context, raw domain.RawAvailabilityParams) (map[int64]domain.DynamicData, error) {
	req, err := domain.NormalizeAvailabilityRequest(raw)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	if err := s.enricher.ValidateLocation(ctx, req.CityID, req.WarehouseID); err != nil {
		if domainErr, ok := apperr.As(err); ok && domainErr.Kind == apperr.KindNotFound {
			return nil, domain.ConfigurationError(domainErr.Message)
		}
		return nil, availabilityFailed(err)
	}

	data, err := s.enricher.Lookup(ctx, req.ProductIDs, req.CityID, req.WarehouseID)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("availability_lookup", err)
		return nil, availabilityFailed(err)
	}

	out := make(map[int64]domain.DynamicData, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		out[id] = data[id]
	}
	return out, nil
}

func availabilityFailed(err error) error {
	return apperr.Wrap(apperr.KindUnavailable, "availability is temporarily unavailable", err).
		WithOp("search.Availability").
		WithCode(domain.CodeAvailabilityFailed)
}
