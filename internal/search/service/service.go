// Package service composes the search components into one request/response
// cycle: resource check, availability gate, primary or fallback search,
// ranking and stock/price enrichment.
package service

import (
	"context"
	"errors"
	"time"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/internal/search/enrichment"
	"vdestor_backend/internal/search/health"
	"vdestor_backend/internal/search/primary"
	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/internal/search/ranking"
	"vdestor_backend/internal/search/variants"
	"vdestor_backend/platform/apperr"
	"vdestor_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultRequestTimeout = 20 * time.Second
	recordTimeout         = 2 * time.Second
)

// Searcher is one search backend.
type Searcher interface {
	Search(ctx context.Context, plan variants.Plan, offset, limit int) (domain.HitSet, error)
}

// Enricher validates locations and looks up stock and price.
type Enricher interface {
	ValidateLocation(ctx context.Context, cityID int64, warehouseID *int64) error
	Lookup(ctx context.Context, ids []int64, cityID int64, warehouseID *int64) (map[int64]domain.DynamicData, error)
}

// HitCache stores ranked hit pages per backend.
type HitCache interface {
	Get(ctx context.Context, source domain.Source, query string, offset, limit int) (domain.HitSet, bool)
	Set(ctx context.Context, source domain.Source, query string, offset, limit int, set domain.HitSet) error
	Ping(ctx context.Context) error
}

// QueryRecorder receives one entry per served search.
type QueryRecorder interface {
	RecordSearch(ctx context.Context, entry querylog.Entry) error
}

// MissReader lists queries that keep returning nothing.
type MissReader interface {
	ListFrequentMisses(ctx context.Context, lookbackDays, minCount, limit int) ([]querylog.MissSummary, error)
}

// Deps are the collaborators of a Service. Gate, Primary, Fallback, Enricher
// and Generator are required; the rest may be nil.
type Deps struct {
	Generator      *variants.Generator
	Gate           health.Checker
	Resources      health.ResourceChecker
	Primary        Searcher
	Fallback       Searcher
	Enricher       Enricher
	Cache          HitCache
	Recorder       QueryRecorder
	Misses         MissReader
	Log            *logger.Logger
	RequestTimeout time.Duration
	ConfigVersion  string
}

type Service struct {
	generator      *variants.Generator
	gate           health.Checker
	resources      health.ResourceChecker
	primary        Searcher
	fallback       Searcher
	enricher       Enricher
	cache          HitCache
	recorder       QueryRecorder
	misses         MissReader
	log            *logger.Logger
	requestTimeout time.Duration
	configVersion  string
	now            func() time.Time
}

func New(deps Deps) *Service {
	generator := deps.Generator
	if generator == nil {
		generator = variants.NewGenerator(nil, nil)
	}
	log := deps.Log
	if log == nil {
		log = logger.Discard()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Service{
		generator:      generator,
		gate:           deps.Gate,
		resources:      deps.Resources,
		primary:        deps.Primary,
		fallback:       deps.Fallback,
		enricher:       deps.Enricher,
		cache:          deps.Cache,
		recorder:       deps.Recorder,
		misses:         deps.Misses,
		log:            log,
		requestTimeout: timeout,
		configVersion:  deps.ConfigVersion,
		now:            time.Now,
	}
}

// outcome is the hit set of the backend that answered.
type outcome struct {
	set    domain.HitSet
	source domain.Source
	reason domain.DegradedReason
}

// Search normalizes raw parameters and runs the search.
func (s *Service) Search(ctx context.Context, raw domain.RawSearchParams) (*domain.SearchResult, error) {
	req, err := domain.NormalizeSearchRequest(raw)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, req)
}

// Execute runs one normalized search request.
//
// The result is either a full SearchResult or an *apperr.Error carrying an
// error code. Location validation runs alongside the backend search; an
// unknown city cancels the search and yields CONFIGURATION_ERROR.
func (s *Service) Execute(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	started := s.now()
	log := s.log.WithContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	plan := s.generator.Generate(req.Query)

	// An unknown location cancels the search. A failed search does not
	// cancel the location check, whose verdict wins.
	searchCtx, cancelSearch := context.WithCancel(ctx)
	defer cancelSearch()

	var (
		g         errgroup.Group
		out       outcome
		locErr    error
		searchErr error
	)
	g.Go(func() error {
		locErr = s.validateLocation(ctx, log, req.CityID, req.WarehouseID)
		if locErr != nil {
			cancelSearch()
		}
		return nil
	})
	g.Go(func() error {
		out, searchErr = s.searchBackends(searchCtx, log, plan, req)
		return nil
	})
	_ = g.Wait()

	if locErr != nil {
		return nil, locErr
	}
	if searchErr != nil {
		return nil, s.terminalError(ctx, searchErr)
	}

	products := ranking.Merge(out.set, req.Page, req.Limit)
	data := s.lookupDynamicData(ctx, log, products, req)

	result := &domain.SearchResult{
		Products:       enrichment.Attach(products, data),
		Total:          out.set.Total,
		Page:           req.Page,
		Limit:          req.Limit,
		Source:         out.source,
		Variants:       plan.Variants,
		TimingMs:       s.now().Sub(started).Milliseconds(),
		DegradedReason: out.reason,
	}
	if result.Variants == nil {
		result.Variants = []domain.QueryVariant{}
	}

	log.SearchCompleted(req.Query, string(result.Source), result.Total, len(result.Products), result.TimingMs, string(result.DegradedReason))
	s.record(ctx, req, result)

	return result, nil
}

func (s *Service) validateLocation(ctx context.Context, log *logger.Logger, cityID int64, warehouseID *int64) error {
	err := s.enricher.ValidateLocation(ctx, cityID, warehouseID)
	if err == nil {
		return nil
	}
	if domainErr, ok := apperr.As(err); ok && domainErr.Kind == apperr.KindNotFound {
		return domain.ConfigurationError(domainErr.Message)
	}
	if ctx.Err() != nil {
		return nil
	}
	// The store could not answer; search proceeds and enrichment reports the
	// same outage if it persists.
	log.DatabaseError("validate_location", err)
	return nil
}

// searchBackends picks the backend for this request and returns its hits.
func (s *Service) searchBackends(ctx context.Context, log *logger.Logger, plan variants.Plan, req domain.SearchRequest) (outcome, error) {
	if s.resources != nil {
		if report := s.resources.Check(); report.Exhausted {
			return s.searchFallback(ctx, log, plan, req, domain.DegradedResourceOverload, errors.New(report.Reason))
		}
	}

	if !s.gate.IsAvailable(ctx) {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		return s.searchFallback(ctx, log, plan, req, domain.DegradedPrimaryUnavailable, nil)
	}

	set, cached, err := s.cachedSearch(ctx, domain.SourcePrimary, s.primary, plan, req)
	if err == nil {
		if !cached {
			s.gate.RecordOutcome(true)
		}
		return outcome{set: set, source: domain.SourcePrimary}, nil
	}

	// The caller gave up, or location validation failed; neither says
	// anything about the primary's health.
	if ctx.Err() != nil {
		return outcome{}, ctx.Err()
	}

	s.gate.RecordOutcome(false)
	reason := domain.DegradedPrimaryError
	if errors.Is(err, primary.ErrBackendTimeout) {
		reason = domain.DegradedPrimaryTimeout
	}
	return s.searchFallback(ctx, log, plan, req, reason, err)
}

func (s *Service) searchFallback(ctx context.Context, log *logger.Logger, plan variants.Plan, req domain.SearchRequest, reason domain.DegradedReason, cause error) (outcome, error) {
	log.PrimaryFallback(string(reason), cause)

	set, _, err := s.cachedSearch(ctx, domain.SourceFallback, s.fallback, plan, req)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		log.DatabaseError("fallback_search", err)
		return outcome{}, apperr.Wrap(apperr.KindUnavailable, "search is temporarily unavailable", err).
			WithOp("search.Execute").
			WithCode(domain.CodeSearchFailed)
	}
	return outcome{set: set, source: domain.SourceFallback, reason: reason}, nil
}

// cachedSearch answers from the cache when it can and fills it otherwise.
func (s *Service) cachedSearch(ctx context.Context, source domain.Source, backend Searcher, plan variants.Plan, req domain.SearchRequest) (domain.HitSet, bool, error) {
	offset := req.Offset()
	if s.cache != nil {
		if set, ok := s.cache.Get(ctx, source, plan.Query, offset, req.Limit); ok {
			return set, true, nil
		}
	}

	set, err := backend.Search(ctx, plan, offset, req.Limit)
	if err != nil {
		return domain.HitSet{}, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, source, plan.Query, offset, req.Limit, set); err != nil {
			s.log.WithContext(ctx).Debug("search cache write failed", "error", err)
		}
	}
	return set, false, nil
}

// lookupDynamicData never fails the request; products keep nil stock and
// price when the lookup cannot complete.
func (s *Service) lookupDynamicData(ctx context.Context, log *logger.Logger, products []domain.ProductSummary, req domain.SearchRequest) map[int64]domain.DynamicData {
	if len(products) == 0 {
		return nil
	}

	data, err := s.enricher.Lookup(ctx, ranking.IDs(products), req.CityID, req.WarehouseID)
	if err != nil {
		log.DataIntegrityWarning(len(products), err)
		return nil
	}

	missing := 0
	for _, p := range products {
		if d, ok := data[p.ID]; !ok || (d.Stock == nil && d.Price == nil) {
			missing++
		}
	}
	if missing > 0 {
		log.Debug("products without stock or price", "missing", missing, "returned", len(products))
	}
	return data
}

// terminalError converts whatever ended the request into a typed error.
func (s *Service) terminalError(ctx context.Context, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	if ctx.Err() != nil {
		return apperr.Wrap(apperr.KindUnavailable, "search timed out", err).
			WithOp("search.Execute").
			WithCode(domain.CodeSearchFailed)
	}
	return apperr.Wrap(apperr.KindUnavailable, "search is temporarily unavailable", err).
		WithOp("search.Execute").
		WithCode(domain.CodeSearchFailed)
}

// record hands the search to the query log without delaying the response.
func (s *Service) record(ctx context.Context, req domain.SearchRequest, result *domain.SearchResult) {
	if s.recorder == nil {
		return
	}

	requestID, _ := ctx.Value(logger.RequestIDKey).(string)
	entry := querylog.Entry{
		Query:          req.Query,
		Source:         string(result.Source),
		ResultCount:    result.Total,
		CityID:         req.CityID,
		TimingMs:       result.TimingMs,
		DegradedReason: string(result.DegradedReason),
		RequestID:      requestID,
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	go func() {
		defer cancel()
		if err := s.recorder.RecordSearch(recordCtx, entry); err != nil {
			s.log.Warn("search log enqueue failed", "error", err)
		}
	}()
}
