package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vdestor_backend/internal/search/domain"
	"vdestor_backend/internal/search/health"
	"vdestor_backend/internal/search/primary"
	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/internal/search/variants"
	"vdestor_backend/platform/apperr"
	"vdestor_backend/platform/logger"
)

type fakeGate struct {
	mu        sync.Mutex
	available bool
	checks    int
	outcomes  []bool
}

func (g *fakeGate) IsAvailable(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return g.available
}

func (g *fakeGate) RecordOutcome(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes = append(g.outcomes, success)
}

func (g *fakeGate) Snapshot() health.State {
	return health.State{Status: health.StatusUp}
}

func (g *fakeGate) recorded() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bool(nil), g.outcomes...)
}

type fakeResources struct {
	report health.ResourceReport
}

func (r fakeResources) Check() health.ResourceReport { return r.report }

// fakeBackend pages a fixed catalog server-side.
type fakeBackend struct {
	hits    []domain.Hit
	err     error
	block   bool
	started chan struct{}
	calls   atomic.Int32

	mu    sync.Mutex
	plans []variants.Plan
}

func (b *fakeBackend) Search(ctx context.Context, plan variants.Plan, offset, limit int) (domain.HitSet, error) {
	b.calls.Add(1)
	b.mu.Lock()
	b.plans = append(b.plans, plan)
	b.mu.Unlock()

	if b.block {
		if b.started != nil {
			close(b.started)
		}
		<-ctx.Done()
		return domain.HitSet{}, fmt.Errorf("%w: %w", primary.ErrBackendUnavailable, ctx.Err())
	}
	if b.err != nil {
		return domain.HitSet{}, b.err
	}

	end := offset + limit
	if end > len(b.hits) {
		end = len(b.hits)
	}
	page := []domain.Hit{}
	if offset < end {
		page = b.hits[offset:end]
	}
	return domain.HitSet{Hits: page, Total: int64(len(b.hits)), Offset: offset}, nil
}

type fakeEnricher struct {
	validateErr   error
	validateDelay time.Duration
	data        map[int64]domain.DynamicData
	lookupErr   error
}

func (e *fakeEnricher) ValidateLocation(context.Context, int64, *int64) error {
	if e.validateDelay > 0 {
		time.Sleep(e.validateDelay)
	}
	return e.validateErr
}

func (e *fakeEnricher) Lookup(_ context.Context, ids []int64, _ int64, _ *int64) (map[int64]domain.DynamicData, error) {
	if e.lookupErr != nil {
		return nil, e.lookupErr
	}
	out := map[int64]domain.DynamicData{}
	for _, id := range ids {
		if d, ok := e.data[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

type fakeCache struct {
	mu   sync.Mutex
	sets map[string]domain.HitSet
}

func (c *fakeCache) key(source domain.Source, query string, offset, limit int) string {
	return fmt.Sprintf("%s|%s|%d|%d", source, query, offset, limit)
}

func (c *fakeCache) Get(_ context.Context, source domain.Source, query string, offset, limit int) (domain.HitSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[c.key(source, query, offset, limit)]
	return set, ok
}

func (c *fakeCache) Set(_ context.Context, source domain.Source, query string, offset, limit int, set domain.HitSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]domain.HitSet{}
	}
	c.sets[c.key(source, query, offset, limit)] = set
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }

type fakeRecorder struct {
	entries chan querylog.Entry
}

func (r *fakeRecorder) RecordSearch(_ context.Context, entry querylog.Entry) error {
	r.entries <- entry
	return nil
}

func catalog(n int) []domain.Hit {
	hits := make([]domain.Hit, n)
	for i := range hits {
		hits[i] = domain.Hit{ProductID: int64(i + 1), Name: fmt.Sprintf("product %d", i+1), Score: float64(n - i)}
	}
	return hits
}

func price(v float64) *float64 { return &v }

type fixture struct {
	gate     *fakeGate
	primary  *fakeBackend
	fallback *fakeBackend
	enricher *fakeEnricher
	deps     Deps
}

func newFixture() *fixture {
	f := &fixture{
		gate:     &fakeGate{available: true},
		primary:  &fakeBackend{hits: catalog(30)},
		fallback: &fakeBackend{hits: catalog(12)},
		enricher: &fakeEnricher{},
	}
	f.deps = Deps{
		Gate:           f.gate,
		Primary:        f.primary,
		Fallback:       f.fallback,
		Enricher:       f.enricher,
		Log:            logger.Discard(),
		RequestTimeout: 5 * time.Second,
	}
	return f
}

func (f *fixture) service() *Service {
	return New(f.deps)
}

func request(query string, page, limit int) domain.SearchRequest {
	return domain.SearchRequest{Query: query, Page: page, Limit: limit, CityID: 1}
}

func TestExecuteServesFromPrimary(t *testing.T) {
	f := newFixture()
	f.enricher.data = map[int64]domain.DynamicData{
		11: {Stock: price(4), Price: price(120.5)},
	}

	result, err := f.service().Execute(context.Background(), request("кабель", 2, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Source != domain.SourcePrimary || result.DegradedReason != domain.DegradedNone {
		t.Fatalf("expected undegraded primary result, got %s/%q", result.Source, result.DegradedReason)
	}
	if result.Total != 30 || len(result.Products) != 10 {
		t.Fatalf("expected 10 of 30 products, got %d of %d", len(result.Products), result.Total)
	}
	if first := result.Products[0]; first.ID != 11 || first.Rank != 11 {
		t.Fatalf("expected product 11 at rank 11, got id %d rank %d", first.ID, first.Rank)
	}
	if p := result.Products[0]; p.Stock == nil || *p.Stock != 4 || p.Price == nil || *p.Price != 120.5 {
		t.Fatalf("expected enrichment on product 11, got %+v", p.DynamicData)
	}
	if got := f.gate.recorded(); len(got) != 1 || !got[0] {
		t.Fatalf("expected one success reported to gate, got %v", got)
	}
	if f.fallback.calls.Load() != 0 {
		t.Fatalf("fallback must not be called")
	}
	if len(result.Variants) == 0 || result.Variants[0].Kind != domain.VariantLiteral {
		t.Fatalf("expected literal variant first, got %v", result.Variants)
	}
}

func TestExecuteUsesFallbackWhileGateIsClosed(t *testing.T) {
	f := newFixture()
	f.gate.available = false
	svc := f.service()

	const callers = 25
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Execute(context.Background(), request("розетка", 1, 5))
			if err != nil {
				errs <- err
				return
			}
			if result.Source != domain.SourceFallback || result.DegradedReason != domain.DegradedPrimaryUnavailable {
				errs <- fmt.Errorf("unexpected source %s/%q", result.Source, result.DegradedReason)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
	if f.primary.calls.Load() != 0 {
		t.Fatalf("primary must not be called while the gate is closed")
	}
	if len(f.gate.recorded()) != 0 {
		t.Fatalf("no outcome should be reported without a primary call")
	}
}

func TestExecuteFallsBackOnPrimaryTimeout(t *testing.T) {
	f := newFixture()
	f.primary.err = fmt.Errorf("%w: %w", primary.ErrBackendTimeout, context.DeadlineExceeded)

	result, err := f.service().Execute(context.Background(), request("лампа", 1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != domain.SourceFallback || result.DegradedReason != domain.DegradedPrimaryTimeout {
		t.Fatalf("expected fallback after timeout, got %s/%q", result.Source, result.DegradedReason)
	}
	if result.Total != 12 {
		t.Fatalf("expected fallback total, got %d", result.Total)
	}
	if got := f.gate.recorded(); len(got) != 1 || got[0] {
		t.Fatalf("expected one failure reported to gate, got %v", got)
	}
}

func TestExecuteFallsBackOnPrimaryError(t *testing.T) {
	f := newFixture()
	f.primary.err = fmt.Errorf("%w: status 500", primary.ErrBackendUnavailable)

	result, err := f.service().Execute(context.Background(), request("abb", 1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DegradedReason != domain.DegradedPrimaryError {
		t.Fatalf("expected primary_error, got %q", result.DegradedReason)
	}
}

func TestExecuteReportsFallbackFailure(t *testing.T) {
	f := newFixture()
	f.gate.available = false
	f.fallback.err = errors.New("connection refused")

	_, err := f.service().Execute(context.Background(), request("кабель", 1, 5))
	domainErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
	if domainErr.Kind != apperr.KindUnavailable || domainErr.Code != domain.CodeSearchFailed {
		t.Fatalf("expected SEARCH_FAILED unavailable error, got kind %v code %q", domainErr.Kind, domainErr.Code)
	}
}

func TestExecuteRejectsUnknownCityAndCancelsSearch(t *testing.T) {
	f := newFixture()
	f.enricher.validateErr = apperr.NotFound("city 99 not found")
	f.primary.block = true

	_, err := f.service().Execute(context.Background(), request("кабель", 1, 5))
	domainErr, ok := apperr.As(err)
	if !ok || domainErr.Code != domain.CodeConfigurationError {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
	if len(f.gate.recorded()) != 0 {
		t.Fatalf("a cancelled primary call must not be reported to the gate")
	}
	if f.fallback.calls.Load() != 0 {
		t.Fatalf("fallback must not run for an unknown city")
	}
}

func TestExecuteRejectsUnknownCityEvenWhenFallbackFailsFirst(t *testing.T) {
	f := newFixture()
	f.gate.available = false
	f.fallback.err = errors.New("connection refused")
	f.enricher.validateErr = apperr.NotFound("city 99 not found")
	f.enricher.validateDelay = 20 * time.Millisecond

	_, err := f.service().Execute(context.Background(), request("кабель", 1, 5))
	domainErr, ok := apperr.As(err)
	if !ok || domainErr.Code != domain.CodeConfigurationError {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
	if f.fallback.calls.Load() != 1 {
		t.Fatalf("expected the fallback to have run once, got %d", f.fallback.calls.Load())
	}
}

func TestExecuteDoesNotBlameGateForCallerCancellation(t *testing.T) {
	f := newFixture()
	f.primary.block = true
	f.primary.started = make(chan struct{})
	svc := f.service()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Execute(ctx, request("кабель", 1, 5))
		done <- err
	}()

	<-f.primary.started
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("search did not stop after cancellation")
	}
	if len(f.gate.recorded()) != 0 {
		t.Fatalf("caller cancellation must not be reported, got %v", f.gate.recorded())
	}
	if f.fallback.calls.Load() != 0 {
		t.Fatalf("fallback must not run after cancellation")
	}
}

func TestExecuteResourceOverloadSkipsGate(t *testing.T) {
	f := newFixture()
	f.deps.Resources = fakeResources{report: health.ResourceReport{Exhausted: true, Reason: "heap 2048MB over 1024MB"}}

	result, err := f.service().Execute(context.Background(), request("кабель", 1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != domain.SourceFallback || result.DegradedReason != domain.DegradedResourceOverload {
		t.Fatalf("expected resource overload fallback, got %s/%q", result.Source, result.DegradedReason)
	}
	if f.gate.checks != 0 || f.primary.calls.Load() != 0 {
		t.Fatalf("gate and primary must be skipped under overload")
	}
}

func TestExecuteKeepsProductsWithoutDynamicData(t *testing.T) {
	f := newFixture()
	f.enricher.data = map[int64]domain.DynamicData{1: {Price: price(10)}}

	result, err := f.service().Execute(context.Background(), request("", 1, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(result.Products))
	}
	if p := result.Products[0]; p.Price == nil || p.Stock != nil {
		t.Fatalf("expected price only on product 1, got %+v", p.DynamicData)
	}
	for _, p := range result.Products[1:] {
		if p.Stock != nil || p.Price != nil {
			t.Fatalf("expected nil fields for product %d, got %+v", p.ID, p.DynamicData)
		}
	}
}

func TestExecuteSurvivesLookupFailure(t *testing.T) {
	f := newFixture()
	f.enricher.lookupErr = errors.New("stock query failed")

	result, err := f.service().Execute(context.Background(), request("кабель", 1, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range result.Products {
		if p.Stock != nil || p.Price != nil {
			t.Fatalf("expected nil dynamic data, got %+v", p.DynamicData)
		}
	}
}

func TestSearchEmptyQueryIsMatchAll(t *testing.T) {
	f := newFixture()

	result, err := f.service().Search(context.Background(), domain.RawSearchParams{Query: "   ", Limit: "10", CityID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Products) != 10 || result.Total != 30 {
		t.Fatalf("expected 10 of the full catalog, got %d of %d", len(result.Products), result.Total)
	}
	if len(result.Variants) != 0 {
		t.Fatalf("expected no variants, got %v", result.Variants)
	}
	if plan := f.primary.plans[0]; !plan.Empty() {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}

func TestSearchAppliesDefaultLimit(t *testing.T) {
	f := newFixture()

	result, err := f.service().Search(context.Background(), domain.RawSearchParams{Query: "кабель", CityID: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Limit != domain.DefaultLimit || len(result.Products) != domain.DefaultLimit {
		t.Fatalf("expected default limit %d, got %d with %d products", domain.DefaultLimit, result.Limit, len(result.Products))
	}
}

func TestSearchRejectsMissingCity(t *testing.T) {
	f := newFixture()

	_, err := f.service().Search(context.Background(), domain.RawSearchParams{Query: "кабель"})
	if domainErr, ok := apperr.As(err); !ok || domainErr.Code != domain.CodeConfigurationError {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
	if f.primary.calls.Load() != 0 {
		t.Fatalf("no backend call expected for an invalid request")
	}
}

func TestExecuteIsDeterministic(t *testing.T) {
	f := newFixture()
	svc := f.service()

	first, err := svc.Execute(context.Background(), request("выключатель", 1, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Execute(context.Background(), request("выключатель", 1, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Source != second.Source || len(first.Products) != len(second.Products) {
		t.Fatalf("expected identical results")
	}
	for i := range first.Products {
		if first.Products[i].ID != second.Products[i].ID {
			t.Fatalf("order differs at %d", i)
		}
	}
}

func TestExecuteServesRepeatPagesFromCache(t *testing.T) {
	f := newFixture()
	f.deps.Cache = &fakeCache{}
	svc := f.service()

	for i := 0; i < 3; i++ {
		if _, err := svc.Execute(context.Background(), request("кабель", 1, 5)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if f.primary.calls.Load() != 1 {
		t.Fatalf("expected one primary call, got %d", f.primary.calls.Load())
	}
	if got := f.gate.recorded(); len(got) != 1 {
		t.Fatalf("cache hits must not be reported to the gate, got %v", got)
	}
}

func TestExecuteRecordsSearch(t *testing.T) {
	f := newFixture()
	recorder := &fakeRecorder{entries: make(chan querylog.Entry, 1)}
	f.deps.Recorder = recorder

	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-42")
	if _, err := f.service().Execute(ctx, request("кабель", 1, 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case entry := <-recorder.entries:
		if entry.RequestID != "req-42" || entry.Source != "primary" || entry.ResultCount != 30 || entry.CityID != 1 {
			t.Fatalf("unexpected entry %+v", entry)
		}
	case <-time.After(time.Second):
		t.Fatalf("search was not recorded")
	}
}
