// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the settings of the
// storefront client: the remote API origin, per-call timeouts, cache TTL
// classes, the fallback persistence backend, outbound rate limiting, the
// circuit breaker, logging, the local facade server, and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-storefront-client/internal/sysutil"
)

// Fallback backends accepted by FALLBACK_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the local facade.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "storefront-client")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CacheConfig holds the TTL classes used by the resource stores.
type CacheConfig struct {
	ListTTL       time.Duration // aggregate lists (cart, wishlist, orders)
	MembershipTTL time.Duration // boolean lookups ("is product X wishlisted")
	CatalogTTL    time.Duration // read-mostly catalog pages and products
}

// FallbackConfig selects and configures the durable key-value store.
type FallbackConfig struct {
	Backend       string // sqlite|redis
	DBPath        string // SQLite path
	RedisAddr     string // host:port
	RedisPassword string
	RedisDB       int
	SnapshotReads bool // also persist successful remote reads as the last-known snapshot
}

// BreakerConfig configures the transport circuit breaker.
type BreakerConfig struct {
	Failures    int           // consecutive transport failures before opening
	OpenTimeout time.Duration // how long the breaker stays open before probing
}

// Config holds all configuration values for the application.
type Config struct {
	// Remote API
	APIBaseURL     string        // origin + base path of the storefront API
	RequestTimeout time.Duration // fixed per-call timeout

	// Outbound rate limiting
	RateRPS   float64 // tokens per second (0 disables limiting)
	RateBurst int     // bucket size (>= 1)

	Breaker  BreakerConfig
	Cache    CacheConfig
	Fallback FallbackConfig

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Local facade server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	GinMode           string // debug|release|test
	APIBasePath       string // base path for the facade routes
	CORS              CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:     strings.TrimRight(getenv("API_BASE_URL", "http://localhost:8080/api/v1"), "/"),
		RequestTimeout: getdur("REQUEST_TIMEOUT", 10*time.Second),

		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		Breaker: BreakerConfig{
			Failures:    getint("BREAKER_FAILURES", 5),
			OpenTimeout: getdur("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},

		Cache: CacheConfig{
			ListTTL:       getdur("CACHE_LIST_TTL", 10*time.Second),
			MembershipTTL: getdur("CACHE_MEMBERSHIP_TTL", 30*time.Second),
			CatalogTTL:    getdur("CACHE_CATALOG_TTL", 60*time.Second),
		},

		Fallback: FallbackConfig{
			Backend:       strings.ToLower(getenv("FALLBACK_BACKEND", BackendSQLite)),
			DBPath:        getenv("DB_PATH", "storefront.db"),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			SnapshotReads: getbool("FALLBACK_SNAPSHOT_READS", false),
		},

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Port:              getenv("PORT", "8090"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 0),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "storefront-client"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, errors.New("API_BASE_URL must be an absolute http(s) URL")
	}
	if cfg.RequestTimeout <= 0 {
		return cfg, errors.New("REQUEST_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Breaker.Failures < 1 {
		return cfg, errors.New("BREAKER_FAILURES must be >= 1")
	}
	if cfg.Breaker.OpenTimeout <= 0 {
		return cfg, errors.New("BREAKER_OPEN_TIMEOUT must be > 0")
	}
	if cfg.Cache.ListTTL <= 0 || cfg.Cache.MembershipTTL <= 0 || cfg.Cache.CatalogTTL <= 0 {
		return cfg, errors.New("cache TTLs must be positive durations")
	}
	switch cfg.Fallback.Backend {
	case BackendSQLite:
		if strings.TrimSpace(cfg.Fallback.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Fallback.RedisAddr) == "" {
			return cfg, errors.New("REDIS_ADDR must not be empty")
		}
	default:
		return cfg, errors.New("FALLBACK_BACKEND must be one of: sqlite, redis")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	// WriteTimeout may be 0: the facade streams Server-Sent Events.
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.WriteTimeout < 0 {
		return cfg, errors.New("server timeouts must be positive durations")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
