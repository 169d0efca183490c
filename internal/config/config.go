// Package config holds the engine's explicit-construction configuration:
// timeouts, cache sizing, and decision weights (spec.md §5 forbids
// implicit global mutable state, so everything here is passed in at
// construction and only defaulted/overridden via options + env vars).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config bundles every tunable the engine's components read at
// construction time.
type Config struct {
	// Per-stage / per-call timeouts (spec.md §5).
	StageTimeout          time.Duration
	HelperTimeout         time.Duration
	VectorStoreTimeout    time.Duration
	RollbackActionTimeout time.Duration

	// Retry defaults for stage runners (spec.md §4.4).
	StageRetryMaxAttempts int
	StageRetryBaseDelay   time.Duration
	StageRetryMaxDelay    time.Duration

	// Helper coordinator cache (spec.md §4.5).
	HelperCacheTTL      time.Duration
	HelperCacheCapacity int

	// Background indexing semaphore (spec.md §5).
	BackgroundIndexPermits int

	// Progress tracker buffer cap in bytes (spec.md §4.10).
	ProgressBufferCapBytes int

	RedisAddr  string
	SQLitePath string

	// AWS credentials for the Bedrock model client. Left blank, the
	// client falls back to the SDK's default credential chain
	// (environment, shared config, instance role).
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
}

// Option mutates a Config during construction.
type Option func(*Config)

// Default returns the engine's built-in defaults, matching spec.md's
// stated defaults verbatim (30s helper timeout, 120s stage timeout, 5s
// vector store timeout, 60s rollback action timeout, 2 stage retries,
// 1h/1000-entry helper cache, 16 background permits).
func Default() *Config {
	return &Config{
		StageTimeout:           120 * time.Second,
		HelperTimeout:          30 * time.Second,
		VectorStoreTimeout:     5 * time.Second,
		RollbackActionTimeout:  60 * time.Second,
		StageRetryMaxAttempts:  2,
		StageRetryBaseDelay:    100 * time.Millisecond,
		StageRetryMaxDelay:     2 * time.Second,
		HelperCacheTTL:         time.Hour,
		HelperCacheCapacity:    1000,
		BackgroundIndexPermits: 16,
		ProgressBufferCapBytes: 10 * 1024 * 1024,
		RedisAddr:              "localhost:6379",
		SQLitePath:             "hive-consensus.db",
	}
}

// New builds a Config from defaults, then environment variables, then
// explicit options — the same three-tier precedence the teacher's
// WithProviderAlias documents (explicit wins, env fills gaps, defaults
// are the floor).
func New(opts ...Option) *Config {
	cfg := Default()
	applyEnv(cfg)
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONSENSUS_STAGE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StageTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("CONSENSUS_HELPER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HelperTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("CONSENSUS_HELPER_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HelperCacheCapacity = n
		}
	}
	if v := os.Getenv("CONSENSUS_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CONSENSUS_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	// Standard AWS env var names, not CONSENSUS_-prefixed: these mirror
	// what every AWS SDK reads, so operators can reuse existing
	// Bedrock credential setups without a consensusd-specific scheme.
	cfg.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.AWSSessionToken = os.Getenv("AWS_SESSION_TOKEN")
}

func WithStageTimeout(d time.Duration) Option       { return func(c *Config) { c.StageTimeout = d } }
func WithHelperTimeout(d time.Duration) Option      { return func(c *Config) { c.HelperTimeout = d } }
func WithRedisAddr(addr string) Option              { return func(c *Config) { c.RedisAddr = addr } }
func WithSQLitePath(path string) Option             { return func(c *Config) { c.SQLitePath = path } }
func WithBackgroundIndexPermits(n int) Option       { return func(c *Config) { c.BackgroundIndexPermits = n } }
func WithHelperCache(ttl time.Duration, cap int) Option {
	return func(c *Config) {
		c.HelperCacheTTL = ttl
		c.HelperCacheCapacity = cap
	}
}
