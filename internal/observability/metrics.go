package observability

import "github.com/prometheus/client_golang/prometheus"

// Collectors of the resilience layer. Label values are bounded: cache and
// resource names, namespaces and topics are fixed sets chosen in code.
var (
	// CacheRequests counts GetOrFetch calls by cache name and hit|miss.
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_requests_total",
			Help: "TTL cache lookups by result.",
		},
		[]string{"cache", "result"},
	)

	// CacheInvalidations counts removed entries.
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_invalidations_total",
			Help: "TTL cache entries removed by invalidation.",
		},
		[]string{"cache"},
	)

	// TransportRequests counts remote calls by outcome (ok, transport,
	// not_found, rejected, auth_expired).
	TransportRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_transport_requests_total",
			Help: "Remote API calls by outcome.",
		},
		[]string{"method", "resource", "outcome"},
	)

	// TransportDuration records remote round-trip time in seconds.
	TransportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_transport_request_duration_seconds",
			Help:    "Duration of remote API calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "resource"},
	)

	// TokenRefreshes counts credential refresh attempts by outcome.
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_token_refreshes_total",
			Help: "Credential refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// BreakerState mirrors the transport circuit breaker (0 closed, 1 half-open, 2 open).
	BreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_transport_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		},
	)

	// FallbackServed counts reads answered from local persistence.
	FallbackServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_fallback_reads_total",
			Help: "Reads served from the fallback copy during a transport failure.",
		},
		[]string{"resource"},
	)

	// FallbackMutations counts mutations applied locally.
	FallbackMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_fallback_mutations_total",
			Help: "Mutations applied to the fallback copy during a transport failure.",
		},
		[]string{"resource"},
	)

	// FallbackCorrupt counts stored values that failed to decode or validate.
	FallbackCorrupt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_fallback_corrupt_total",
			Help: "Fallback values discarded as corrupt.",
		},
		[]string{"namespace"},
	)

	// BusPublishes counts invalidation broadcasts by topic.
	BusPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_bus_publishes_total",
			Help: "Invalidation bus publishes by topic.",
		},
		[]string{"topic"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheRequests, CacheInvalidations,
		TransportRequests, TransportDuration, TokenRefreshes, BreakerState,
		FallbackServed, FallbackMutations, FallbackCorrupt,
		BusPublishes,
	)
}
