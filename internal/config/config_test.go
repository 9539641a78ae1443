package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBaseURL == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- Load defaults ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api/v1" {
		t.Fatalf("API_BASE_URL default = %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("REQUEST_TIMEOUT default = %v", cfg.RequestTimeout)
	}
	if cfg.Cache.ListTTL != 10*time.Second || cfg.Cache.MembershipTTL != 30*time.Second || cfg.Cache.CatalogTTL != time.Minute {
		t.Fatalf("cache defaults unexpected: %+v", cfg.Cache)
	}
	if cfg.Fallback.Backend != BackendSQLite || cfg.Fallback.DBPath != "storefront.db" || cfg.Fallback.SnapshotReads {
		t.Fatalf("fallback defaults unexpected: %+v", cfg.Fallback)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.WriteTimeout != 0 {
		t.Fatalf("facade defaults unexpected: %+v", cfg)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://shop.example.com/api/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("RATE_RPS", "x") // -> default 20
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("BREAKER_FAILURES", "2")
	t.Setenv("BREAKER_OPEN_TIMEOUT", "5s")
	t.Setenv("CACHE_LIST_TTL", "2s")
	t.Setenv("CACHE_MEMBERSHIP_TTL", "4s")
	t.Setenv("CACHE_CATALOG_TTL", "8s")
	t.Setenv("FALLBACK_BACKEND", "REDIS")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("FALLBACK_SNAPSHOT_READS", "on")
	t.Setenv("LOG_LEVEL", "warning") // -> warn
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("GIN_MODE", "weird") // -> release
	t.Setenv("API_BASE_PATH", "local/")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.APIBaseURL != "https://shop.example.com/api" || cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("remote fields unexpected: %+v", cfg)
	}
	if cfg.RateRPS != 20.0 || cfg.RateBurst != 40 {
		t.Fatalf("rate limiting unexpected: %v/%v", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.Breaker.Failures != 2 || cfg.Breaker.OpenTimeout != 5*time.Second {
		t.Fatalf("breaker unexpected: %+v", cfg.Breaker)
	}
	if cfg.Cache.ListTTL != 2*time.Second || cfg.Cache.MembershipTTL != 4*time.Second || cfg.Cache.CatalogTTL != 8*time.Second {
		t.Fatalf("cache unexpected: %+v", cfg.Cache)
	}
	if cfg.Fallback.Backend != BackendRedis || cfg.Fallback.RedisAddr != "cache:6380" || cfg.Fallback.RedisDB != 3 || !cfg.Fallback.SnapshotReads {
		t.Fatalf("fallback unexpected: %+v", cfg.Fallback)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.GinMode != "release" || cfg.APIBasePath != "/local" {
		t.Fatalf("logging/facade unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name, key, val, want string
	}{
		{"invalid LOG_LEVEL", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"relative base url", "API_BASE_URL", "/api", "API_BASE_URL"},
		{"ftp base url", "API_BASE_URL", "ftp://x/api", "API_BASE_URL"},
		{"zero request timeout", "REQUEST_TIMEOUT", "0s", "REQUEST_TIMEOUT"},
		{"rate rps negative", "RATE_RPS", "-1", "RATE_RPS"},
		{"rate burst < 1", "RATE_BURST", "0", "RATE_BURST"},
		{"breaker failures < 1", "BREAKER_FAILURES", "0", "BREAKER_FAILURES"},
		{"breaker timeout zero", "BREAKER_OPEN_TIMEOUT", "0s", "BREAKER_OPEN_TIMEOUT"},
		{"cache ttl zero", "CACHE_LIST_TTL", "0s", "cache TTLs"},
		{"unknown backend", "FALLBACK_BACKEND", "etcd", "FALLBACK_BACKEND"},
		{"empty DB_PATH", "DB_PATH", "   ", "DB_PATH must not be empty"},
		{"empty PORT", "PORT", "   ", "PORT must not be empty"},
		{"negative write timeout", "WRITE_TIMEOUT", "-1s", "server timeouts"},
		{"otel sample ratio", "OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}

	t.Run("empty REDIS_ADDR with redis backend", func(t *testing.T) {
		t.Setenv("FALLBACK_BACKEND", "redis")
		t.Setenv("REDIS_ADDR", "  ")
		if _, err := Load(); err == nil || !containsErr(err, "REDIS_ADDR") {
			t.Fatalf("expected REDIS_ADDR validation error, got: %v", err)
		}
	})
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}
	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		t.Setenv("B_T", v)
		if !getbool("B_T", false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	for _, v := range []string{"0", "false", " no ", "N", "off"} {
		t.Setenv("B_F", v)
		if getbool("B_F", true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_JUNK", "maybe")
	if !getbool("B_JUNK", true) || getbool("B_JUNK", false) {
		t.Fatalf("getbool should keep default on unknown values")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}
	if normalizeBasePath("") != "/" || normalizeBasePath("v1") != "/v1" || normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath unexpected")
	}
}

// Ensure tests don't pick up env from the host.
func TestMain(m *testing.M) {
	for _, k := range []string{"API_BASE_URL", "PORT", "DB_PATH", "FALLBACK_BACKEND", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
