// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
//
// Everything is read once at startup. Timeouts and backoff bounds are
// configuration, never values patched at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetSearchRateLimit() (rps float64, burst int)
}

// OpenSearchConfig provides settings for the primary full-text backend.
type OpenSearchConfig interface {
	GetOpenSearchURL() string
	GetOpenSearchIndex() string
	GetOpenSearchUsername() string
	GetOpenSearchPassword() string
}

// SearchConfig provides the orchestration deadlines and backoff bounds.
type SearchConfig interface {
	GetSearchConfigVersion() string
	GetSearchRequestTimeout() time.Duration
	GetSearchPrimaryTimeout() time.Duration
	GetSearchFallbackTimeout() time.Duration
	GetSearchProbeTimeout() time.Duration
	GetSearchEnrichmentTimeout() time.Duration
	GetSearchBackoffFloor() time.Duration
	GetSearchBackoffStep() time.Duration
	GetSearchBackoffCeiling() time.Duration
	GetSearchFailureThreshold() uint
	GetSearchDictionaryFile() string
	GetSearchCacheTTL() time.Duration
}

// ResourceConfig provides the process resource thresholds checked before
// the primary backend is consulted.
type ResourceConfig interface {
	GetResourceMaxHeapMB() uint64
	GetResourceMaxLoadPerCPU() float64
}

// RedisConfig provides Redis connection settings for the result cache.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq query-log pipeline.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSearchLogRetention() time.Duration
	GetSearchLogCleanupInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	SearchRateLimitRPS      float64
	SearchRateLimitBurst    int
	OpenSearchURL           string
	OpenSearchIndex         string
	OpenSearchUsername      string
	OpenSearchPassword      string
	SearchConfigVersion     string
	SearchRequestTimeout    time.Duration
	SearchPrimaryTimeout    time.Duration
	SearchFallbackTimeout   time.Duration
	SearchProbeTimeout      time.Duration
	SearchEnrichmentTimeout time.Duration
	SearchBackoffFloor      time.Duration
	SearchBackoffStep       time.Duration
	SearchBackoffCeiling    time.Duration
	SearchFailureThreshold  uint
	SearchDictionaryFile    string
	SearchCacheTTL          time.Duration
	ResourceMaxHeapMB       uint64
	ResourceMaxLoadPerCPU   float64
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	SearchLogRetention      time.Duration
	SearchLogCleanupEvery   time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// IsAdminEnabled reports whether admin routes can be authenticated.
func (c *Config) IsAdminEnabled() bool { return c.JWTAccessSecret != "" }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetSearchRateLimit() (float64, int) {
	return c.SearchRateLimitRPS, c.SearchRateLimitBurst
}

// OpenSearchConfig implementation
func (c *Config) GetOpenSearchURL() string      { return c.OpenSearchURL }
func (c *Config) GetOpenSearchIndex() string    { return c.OpenSearchIndex }
func (c *Config) GetOpenSearchUsername() string { return c.OpenSearchUsername }
func (c *Config) GetOpenSearchPassword() string { return c.OpenSearchPassword }

// SearchConfig implementation
func (c *Config) GetSearchConfigVersion() string            { return c.SearchConfigVersion }
func (c *Config) GetSearchRequestTimeout() time.Duration    { return c.SearchRequestTimeout }
func (c *Config) GetSearchPrimaryTimeout() time.Duration    { return c.SearchPrimaryTimeout }
func (c *Config) GetSearchFallbackTimeout() time.Duration   { return c.SearchFallbackTimeout }
func (c *Config) GetSearchProbeTimeout() time.Duration      { return c.SearchProbeTimeout }
func (c *Config) GetSearchEnrichmentTimeout() time.Duration { return c.SearchEnrichmentTimeout }
func (c *Config) GetSearchBackoffFloor() time.Duration      { return c.SearchBackoffFloor }
func (c *Config) GetSearchBackoffStep() time.Duration       { return c.SearchBackoffStep }
func (c *Config) GetSearchBackoffCeiling() time.Duration    { return c.SearchBackoffCeiling }
func (c *Config) GetSearchFailureThreshold() uint           { return c.SearchFailureThreshold }
func (c *Config) GetSearchDictionaryFile() string           { return c.SearchDictionaryFile }
func (c *Config) GetSearchCacheTTL() time.Duration          { return c.SearchCacheTTL }

// ResourceConfig implementation
func (c *Config) GetResourceMaxHeapMB() uint64      { return c.ResourceMaxHeapMB }
func (c *Config) GetResourceMaxLoadPerCPU() float64 { return c.ResourceMaxLoadPerCPU }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) IsRedisEnabled() bool       { return c.RedisURL != "" }

func (c *Config) GetSearchLogRetention() time.Duration       { return c.SearchLogRetention }
func (c *Config) GetSearchLogCleanupInterval() time.Duration { return c.SearchLogCleanupEvery }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	threshold := mustInt64(getEnv("SEARCH_FAILURE_THRESHOLD", "3"))
	if threshold < 0 {
		threshold = 0
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		SearchRateLimitRPS:      mustFloat64(getEnv("SEARCH_RATE_LIMIT_RPS", "20")),
		SearchRateLimitBurst:    int(mustInt64(getEnv("SEARCH_RATE_LIMIT_BURST", "40"))),
		OpenSearchURL:           strings.TrimRight(getEnv("OPENSEARCH_URL", "http://localhost:9200"), "/"),
		OpenSearchIndex:         getEnv("OPENSEARCH_INDEX", "products_current"),
		OpenSearchUsername:      getEnv("OPENSEARCH_USERNAME", ""),
		OpenSearchPassword:      getEnv("OPENSEARCH_PASSWORD", ""),
		SearchConfigVersion:     getEnv("SEARCH_CONFIG_VERSION", "1"),
		SearchRequestTimeout:    mustDuration(getEnv("SEARCH_REQUEST_TIMEOUT", "20s")),
		SearchPrimaryTimeout:    mustDuration(getEnv("SEARCH_PRIMARY_TIMEOUT", "8s")),
		SearchFallbackTimeout:   mustDuration(getEnv("SEARCH_FALLBACK_TIMEOUT", "12s")),
		SearchProbeTimeout:      mustDuration(getEnv("SEARCH_PROBE_TIMEOUT", "2s")),
		SearchEnrichmentTimeout: mustDuration(getEnv("SEARCH_ENRICHMENT_TIMEOUT", "5s")),
		SearchBackoffFloor:      mustDuration(getEnv("SEARCH_BACKOFF_FLOOR", "30s")),
		SearchBackoffStep:       mustDuration(getEnv("SEARCH_BACKOFF_STEP", "10s")),
		SearchBackoffCeiling:    mustDuration(getEnv("SEARCH_BACKOFF_CEILING", "300s")),
		SearchFailureThreshold:  uint(threshold),
		SearchDictionaryFile:    getEnv("SEARCH_DICTIONARY_FILE", ""),
		SearchCacheTTL:          mustDuration(getEnv("SEARCH_CACHE_TTL", "60s")),
		ResourceMaxHeapMB:       uint64(mustInt64(getEnv("RESOURCE_MAX_HEAP_MB", "1024"))),
		ResourceMaxLoadPerCPU:   mustFloat64(getEnv("RESOURCE_MAX_LOAD_PER_CPU", "4")),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "search"),
		AsynqConcurrency:        int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "5"))),
		SearchLogRetention:      mustDuration(getEnv("SEARCH_LOG_RETENTION", "720h")),
		SearchLogCleanupEvery:   mustDuration(getEnv("SEARCH_LOG_CLEANUP_INTERVAL", "1h")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if err := cfg.validateSearch(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validateSearch() error {
	timeouts := map[string]time.Duration{
		"SEARCH_REQUEST_TIMEOUT":    c.SearchRequestTimeout,
		"SEARCH_PRIMARY_TIMEOUT":    c.SearchPrimaryTimeout,
		"SEARCH_FALLBACK_TIMEOUT":   c.SearchFallbackTimeout,
		"SEARCH_PROBE_TIMEOUT":      c.SearchProbeTimeout,
		"SEARCH_ENRICHMENT_TIMEOUT": c.SearchEnrichmentTimeout,
		"SEARCH_BACKOFF_FLOOR":      c.SearchBackoffFloor,
		"SEARCH_BACKOFF_CEILING":    c.SearchBackoffCeiling,
	}
	for key, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}
	if c.SearchBackoffStep < 0 {
		return fmt.Errorf("SEARCH_BACKOFF_STEP cannot be negative")
	}
	if c.SearchBackoffFloor > c.SearchBackoffCeiling {
		return fmt.Errorf("SEARCH_BACKOFF_FLOOR cannot exceed SEARCH_BACKOFF_CEILING")
	}
	if c.SearchFailureThreshold < 1 {
		return fmt.Errorf("SEARCH_FAILURE_THRESHOLD must be at least 1")
	}
	if c.OpenSearchURL == "" || c.OpenSearchIndex == "" {
		return fmt.Errorf("OPENSEARCH_URL and OPENSEARCH_INDEX are required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
