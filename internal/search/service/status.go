package service

import (
	"context"
	"errors"
	"time"

	"vdestor_backend/internal/search/cache"
	"vdestor_backend/internal/search/health"
	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/platform/apperr"
)

const cachePingTimeout = time.Second

// StatusReport is the operator view of the search pipeline.
type StatusReport struct {
	ConfigVersion string                 `json:"config_version"`
	Gate          health.State           `json:"gate"`
	Resources     *health.ResourceReport `json:"resources,omitempty"`
	Cache         string                 `json:"cache"`
	CheckedAt     time.Time              `json:"checked_at"`
}

// Status reads the gate and resource monitor without triggering a probe.
func (s *Service) Status(ctx context.Context) StatusReport {
	report := StatusReport{
		ConfigVersion: s.configVersion,
		Gate:          s.gate.Snapshot(),
		Cache:         "disabled",
		CheckedAt:     s.now().UTC(),
	}

	if s.resources != nil {
		r := s.resources.Check()
		report.Resources = &r
	}

	if s.cache != nil {
		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		defer cancel()
		switch err := s.cache.Ping(pingCtx); {
		case err == nil:
			report.Cache = "ok"
		case errors.Is(err, cache.ErrDisabled):
			report.Cache = "disabled"
		default:
			report.Cache = "error: " + err.Error()
		}
	}

	return report
}

// FrequentMisses lists zero-result queries seen at least minCount times in
// the last lookbackDays.
func (s *Service) FrequentMisses(ctx context.Context, lookbackDays, minCount, limit int) ([]querylog.MissSummary, error) {
	if s.misses == nil {
		return []querylog.MissSummary{}, nil
	}

	items, err := s.misses.ListFrequentMisses(ctx, lookbackDays, minCount, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list search misses", err).WithOp("search.FrequentMisses")
	}
	return items, nil
}
