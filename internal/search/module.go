package search

import (
	"time"

	apphttp "vdestor_backend/internal/http"
	"vdestor_backend/internal/search/cache"
	"vdestor_backend/internal/search/enrichment"
	"vdestor_backend/internal/search/fallback"
	"vdestor_backend/internal/search/handler"
	"vdestor_backend/internal/search/health"
	"vdestor_backend/internal/search/primary"
	"vdestor_backend/internal/search/querylog"
	"vdestor_backend/internal/search/service"
	"vdestor_backend/internal/search/variants"
	"vdestor_backend/platform/config"
	"vdestor_backend/platform/logger"
	"vdestor_backend/platform/opensearch"
	"vdestor_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Config is the configuration the search module reads.
type Config interface {
	config.OpenSearchConfig
	config.SearchConfig
	config.ResourceConfig
}

// Deps are the shared resources the module is built from.
type Deps struct {
	Pool      *pgxpool.Pool
	Redis     redis.UniversalClient // nil disables the hit cache
	Recorder  service.QueryRecorder // nil disables the query log
	Config    Config
	Validator *validator.Validator
	Log       *logger.Logger
}

type Module struct {
	handler *handler.Handler
	service *service.Service
	gate    *health.Gate
}

func NewModule(deps Deps) (*Module, error) {
	cfg := deps.Config

	generator, err := variants.Load(cfg.GetSearchDictionaryFile())
	if err != nil {
		return nil, err
	}

	primaryAdapter := primary.New(NewOpenSearchClient(cfg, cfg.GetSearchRequestTimeout()), cfg.GetSearchPrimaryTimeout())
	gate := health.NewGate(primaryAdapter, health.GateConfig{
		Backoff: health.BackoffPolicy{
			Floor:   cfg.GetSearchBackoffFloor(),
			Step:    cfg.GetSearchBackoffStep(),
			Ceiling: cfg.GetSearchBackoffCeiling(),
		},
		FailureThreshold: cfg.GetSearchFailureThreshold(),
		ProbeTimeout:     cfg.GetSearchProbeTimeout(),
	}, health.WithLogger(deps.Log))

	svcDeps := service.Deps{
		Generator: generator,
		Gate:      gate,
		Resources: health.NewResourceMonitor(health.ResourceLimits{
			MaxHeapMB:     cfg.GetResourceMaxHeapMB(),
			MaxLoadPerCPU: cfg.GetResourceMaxLoadPerCPU(),
		}),
		Primary:        primaryAdapter,
		Fallback:       fallback.New(deps.Pool, cfg.GetSearchFallbackTimeout()),
		Enricher:       enrichment.New(deps.Pool, cfg.GetSearchEnrichmentTimeout()),
		Recorder:       deps.Recorder,
		Misses:         querylog.New(deps.Pool),
		Log:            deps.Log,
		RequestTimeout: cfg.GetSearchRequestTimeout(),
		ConfigVersion:  cfg.GetSearchConfigVersion(),
	}
	if hitCache := cache.New(deps.Redis, cfg.GetSearchCacheTTL(), cfg.GetSearchConfigVersion()); hitCache != nil {
		svcDeps.Cache = hitCache
	}

	svc := service.New(svcDeps)

	return &Module{
		handler: handler.New(svc, deps.Validator),
		service: svc,
		gate:    gate,
	}, nil
}

// NewOpenSearchClient builds the primary backend client from configuration.
func NewOpenSearchClient(cfg config.OpenSearchConfig, timeout time.Duration) *opensearch.Client {
	return opensearch.NewClient(opensearch.Config{
		BaseURL:  cfg.GetOpenSearchURL(),
		Index:    cfg.GetOpenSearchIndex(),
		Username: cfg.GetOpenSearchUsername(),
		Password: cfg.GetOpenSearchPassword(),
		Timeout:  timeout,
	})
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Gate() *health.Gate {
	return m.gate
}

func (m *Module) Name() string {
	return "search"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	public := ctx.V1.Group("")
	if ctx.SearchRateLimit != nil {
		public.Use(ctx.SearchRateLimit)
	}
	m.handler.RegisterRoutes(public)

	if ctx.Admin != nil {
		m.handler.RegisterAdminRoutes(ctx.Admin.Group("/search"))
	}
}

var _ apphttp.Module = (*Module)(nil)
