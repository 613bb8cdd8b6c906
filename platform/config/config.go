// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
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
	GetDatabaseMaxConns() int32
	GetDatabaseMinConns() int32
}

// MigrationConfig provides settings for schema migrations.
type MigrationConfig interface {
	DatabaseConfig
	GetMigrationsDir() string
}

// StoreConfig provides settings for the listing store accessor.
type StoreConfig interface {
	GetStoreQueryTimeout() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// CacheConfig provides settings for the comparables response cache.
type CacheConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetCacheTTL() time.Duration
	IsCacheEnabled() bool
}

// SchedulerConfig provides settings for the asynq-based job scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPrecomputeInterval() time.Duration
}

// RankingConfig provides settings for the comparables engine.
type RankingConfig interface {
	GetRankingProfilePath() string
	GetDefaultResultCount() int
	GetMinPoolSize() int
	GetMaxPoolSize() int
}

// Config holds every setting loaded from the environment.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	DatabaseMaxConns   int32
	DatabaseMinConns   int32
	MigrationsDir      string
	StoreQueryTimeout  time.Duration
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	RateLimitRPS       float64
	RateLimitBurst     int
	RedisURL           string
	RedisTLSInsecure   bool
	CacheTTL           time.Duration
	CacheEnabled       bool
	AsynqQueueName     string
	AsynqConcurrency   int
	PrecomputeInterval time.Duration
	RankingProfilePath string
	DefaultResultCount int
	MinPoolSize        int
	MaxPoolSize        int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int32 { return c.DatabaseMaxConns }
func (c *Config) GetDatabaseMinConns() int32 { return c.DatabaseMinConns }

// MigrationConfig implementation
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

// StoreConfig implementation
func (c *Config) GetStoreQueryTimeout() time.Duration { return c.StoreQueryTimeout }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// CacheConfig and SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetCacheTTL() time.Duration { return c.CacheTTL }
func (c *Config) IsCacheEnabled() bool       { return c.CacheEnabled && c.RedisURL != "" }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetPrecomputeInterval() time.Duration {
	return c.PrecomputeInterval
}

// RankingConfig implementation
func (c *Config) GetRankingProfilePath() string { return c.RankingProfilePath }
func (c *Config) GetDefaultResultCount() int    { return c.DefaultResultCount }
func (c *Config) GetMinPoolSize() int           { return c.MinPoolSize }
func (c *Config) GetMaxPoolSize() int           { return c.MaxPoolSize }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:   int32(mustInt64(getEnv("DATABASE_MAX_CONNS", "25"))),
		DatabaseMinConns:   int32(mustInt64(getEnv("DATABASE_MIN_CONNS", "5"))),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		StoreQueryTimeout:  mustDuration(getEnv("STORE_QUERY_TIMEOUT", "5s")),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRPS:       mustFloat64(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:     int(mustInt64(getEnv("RATE_LIMIT_BURST", "40"))),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		CacheTTL:           mustDuration(getEnv("COMPARABLES_CACHE_TTL", "15m")),
		CacheEnabled:       strings.EqualFold(getEnv("COMPARABLES_CACHE_ENABLED", "true"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "comparables"),
		AsynqConcurrency:   int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		PrecomputeInterval: mustDuration(getEnv("COMPARABLES_PRECOMPUTE_INTERVAL", "0s")),
		RankingProfilePath: getEnv("RANKING_PROFILE_PATH", ""),
		DefaultResultCount: int(mustInt64(getEnv("COMPARABLES_DEFAULT_COUNT", "12"))),
		MinPoolSize:        int(mustInt64(getEnv("COMPARABLES_MIN_POOL", "5"))),
		MaxPoolSize:        int(mustInt64(getEnv("COMPARABLES_MAX_POOL", "200"))),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.StoreQueryTimeout <= 0 {
		return nil, fmt.Errorf("STORE_QUERY_TIMEOUT must be a positive duration")
	}
	if cfg.DefaultResultCount < 1 || cfg.DefaultResultCount > 50 {
		return nil, fmt.Errorf("COMPARABLES_DEFAULT_COUNT must be between 1 and 50")
	}
	if cfg.MinPoolSize < 1 || cfg.MaxPoolSize < cfg.MinPoolSize {
		return nil, fmt.Errorf("COMPARABLES_MIN_POOL must be >= 1 and <= COMPARABLES_MAX_POOL")
	}
	if cfg.DatabaseMaxConns < 1 {
		return nil, fmt.Errorf("DATABASE_MAX_CONNS must be >= 1")
	}

	return cfg, nil
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
	result, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
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
